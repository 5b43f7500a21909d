package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule validates a standard five-field cron expression
// ("minute hour day month weekday") using the robfig/cron/v3 parser,
// the same parser the prober's scheduler runs on. A schedule that
// passes here is guaranteed to be accepted by the scheduler.
//
// Examples of valid schedules:
//   - "* * * * *"     (every minute)
//   - "*/5 * * * *"   (every five minutes)
//   - "30 5 * * 1-5"  (weekdays at 5:30)
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}

	return nil
}

// ValidateTimezone validates an IANA timezone name by loading it with
// time.LoadLocation. Validation can fail for real timezone names when
// the runtime has no tzdata available, so container images must ship
// the tzdata package.
//
// Examples: "UTC", "Asia/Tokyo", "America/New_York".
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}

	return nil
}

// ValidateDuration validates that a duration falls inside an inclusive
// range. The range itself is checked first so a misconfigured caller
// fails loudly instead of rejecting every value.
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}

	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}

	return nil
}

// ValidateIntRange validates that an integer falls inside an inclusive
// range. Used for ports, parallelism bounds and attempt counts.
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}

	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}

	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}

	return nil
}

// ValidatePositiveDuration validates that a duration is strictly
// positive. Zero and negative durations usually indicate a disabled or
// mistyped setting, and every timeout in the prober must be positive.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}

	return nil
}

// ValidateGRPCAddress validates a gRPC probe target address. Targets
// are plain host:port pairs; scheme-style target strings like
// "dns:///host" are rejected to keep profiles unambiguous.
func ValidateGRPCAddress(address string) error {
	if address == "" {
		return fmt.Errorf("invalid grpc address: cannot be empty")
	}

	if strings.Contains(address, "://") {
		return fmt.Errorf("invalid grpc address '%s': must be host:port, not a URL", address)
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid grpc address '%s': %w", address, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("invalid grpc address '%s': must be host:port", address)
	}

	return nil
}

// ValidateProbeURL validates a probe target URL: it must parse, carry
// an http or https scheme and name a host. Reachability is not checked
// here; an unreachable target is exactly what probes exist to detect.
// Error messages redact any credentials in the URL, since they end up
// in startup logs.
func ValidateProbeURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("invalid probe URL: cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid probe URL '%s': %w", RedactURL(rawURL), err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid probe URL '%s': scheme must be http or https, got '%s'", RedactURL(rawURL), parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid probe URL '%s': missing host", RedactURL(rawURL))
	}

	return nil
}
