package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"breakwater/pkg/resilience"
)

// Target types understood by the prober.
const (
	TargetTypeHTTP = "http"
	TargetTypeGRPC = "grpc"
)

// ProbeTarget is one probed dependency: where to send the probe and
// which resilience configuration to run it under. Targets are built
// from the profiles YAML file by LoadProfiles.
type ProbeTarget struct {
	// Name identifies the dependency. It is the breaker name, the
	// metrics label and the log attribute for every probe of this
	// target.
	Name string

	// Type selects the probe protocol, TargetTypeHTTP or
	// TargetTypeGRPC. Empty means HTTP.
	Type string

	// URL is the probed endpoint. For gRPC targets it is a host:port
	// address instead of a URL.
	URL string

	// Method is the probe HTTP method, GET or HEAD. HTTP targets only.
	Method string

	// ExpectStatus is the status code counted as healthy. Zero means
	// any 2xx. HTTP targets only.
	ExpectStatus int

	// GRPCService is the service name passed to the standard gRPC
	// health check. Empty checks the server's overall health. gRPC
	// targets only.
	GRPCService string

	// Resilience is the per-call pipeline configuration for this
	// target.
	Resilience resilience.Config
}

// Duration wraps time.Duration so YAML profiles can use Go duration
// strings ("500ms", "45s", "5m") instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML decodes a YAML scalar as a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// profileFile is the root of the profiles YAML document.
//
// Layout:
//
//	defaults:            # optional overlay for targets without a profile class
//	  timeout: 5s
//	  retry:
//	    max_retries: 2
//	  breaker:
//	    failure_threshold: 5
//	targets:
//	  - name: payments-api
//	    url: https://payments.internal/health
//	    profile: export_api      # named class, or omit to use defaults
//	    resilience:              # optional per-target overrides
//	      timeout: 2s
//	  - name: embeddings
//	    type: grpc               # health-checked over grpc.health.v1
//	    url: embeddings.internal:50051
//	    grpc_service: ai.v1.Embeddings
//	    profile: ai_provider
type profileFile struct {
	Defaults *profileSpec `yaml:"defaults"`
	Targets  []targetSpec `yaml:"targets"`
}

type targetSpec struct {
	Name         string       `yaml:"name"`
	Type         string       `yaml:"type"`
	URL          string       `yaml:"url"`
	Method       string       `yaml:"method"`
	ExpectStatus int          `yaml:"expect_status"`
	GRPCService  string       `yaml:"grpc_service"`
	Profile      string       `yaml:"profile"`
	Resilience   *profileSpec `yaml:"resilience"`
}

// profileSpec is a partial resilience configuration. Fields are
// pointers so an absent field leaves the base value untouched while an
// explicit zero overrides it.
type profileSpec struct {
	Timeout *Duration    `yaml:"timeout"`
	Retry   *retrySpec   `yaml:"retry"`
	Breaker *breakerSpec `yaml:"breaker"`
}

type retrySpec struct {
	MaxRetries     *int      `yaml:"max_retries"`
	BaseDelay      *Duration `yaml:"base_delay"`
	MaxDelay       *Duration `yaml:"max_delay"`
	Multiplier     *float64  `yaml:"multiplier"`
	JitterFraction *float64  `yaml:"jitter_fraction"`
}

type breakerSpec struct {
	FailureThreshold *int      `yaml:"failure_threshold"`
	ResetTimeout     *Duration `yaml:"reset_timeout"`
	MonitoringPeriod *Duration `yaml:"monitoring_period"`
}

// apply overlays the spec onto a base configuration. A layer absent in
// the base but present in the spec is created from the library default
// before the overlay, so a spec that only sets retry.max_retries still
// yields a complete retry layer.
func (s *profileSpec) apply(base resilience.Config) resilience.Config {
	if s == nil {
		return base
	}

	if s.Timeout != nil {
		if base.Timeout == nil {
			base.Timeout = &resilience.TimeoutConfig{}
		} else {
			cp := *base.Timeout
			base.Timeout = &cp
		}
		base.Timeout.Duration = s.Timeout.Std()
	}

	if s.Retry != nil {
		var retry resilience.RetryConfig
		if base.Retry != nil {
			retry = *base.Retry
		} else {
			retry = resilience.DefaultRetryConfig()
		}
		if s.Retry.MaxRetries != nil {
			retry.MaxRetries = *s.Retry.MaxRetries
		}
		if s.Retry.BaseDelay != nil {
			retry.BaseDelay = s.Retry.BaseDelay.Std()
		}
		if s.Retry.MaxDelay != nil {
			retry.MaxDelay = s.Retry.MaxDelay.Std()
		}
		if s.Retry.Multiplier != nil {
			retry.Multiplier = *s.Retry.Multiplier
		}
		if s.Retry.JitterFraction != nil {
			retry.JitterFraction = *s.Retry.JitterFraction
		}
		base.Retry = &retry
	}

	if s.Breaker != nil {
		var breaker resilience.BreakerConfig
		if base.Breaker != nil {
			breaker = *base.Breaker
		} else {
			breaker = resilience.DefaultBreakerConfig()
		}
		if s.Breaker.FailureThreshold != nil {
			breaker.FailureThreshold = *s.Breaker.FailureThreshold
		}
		if s.Breaker.ResetTimeout != nil {
			breaker.ResetTimeout = s.Breaker.ResetTimeout.Std()
		}
		if s.Breaker.MonitoringPeriod != nil {
			breaker.MonitoringPeriod = s.Breaker.MonitoringPeriod.Std()
		}
		base.Breaker = &breaker
	}

	return base
}

// defaultProbeProfile is the baseline pipeline for targets that name no
// profile class: a short per-attempt deadline with the library's
// default retry and breaker settings.
func defaultProbeProfile() resilience.Config {
	retry := resilience.DefaultRetryConfig()
	breaker := resilience.DefaultBreakerConfig()
	return resilience.Config{
		Timeout: &resilience.TimeoutConfig{Duration: 5 * time.Second},
		Retry:   &retry,
		Breaker: &breaker,
	}
}

// profileByClass resolves a named profile class to its configuration.
func profileByClass(class string) (resilience.Config, error) {
	switch class {
	case "ai_provider":
		return resilience.AIProviderProfile(), nil
	case "export_api":
		return resilience.ExportAPIProfile(), nil
	case "database":
		return resilience.DatabaseProfile(), nil
	case "default":
		return defaultProbeProfile(), nil
	default:
		return resilience.Config{}, fmt.Errorf("unknown profile class '%s'", class)
	}
}

// LoadProfiles reads and validates the probe profiles YAML file and
// returns the fully resolved targets.
//
// Per-target configuration is resolved in three steps:
//  1. Base: the named profile class when `profile` is set, otherwise
//     the file-level `defaults` overlaid on the builtin baseline.
//  2. Overlay: the target's `resilience` block, field by field.
//  3. Validation of the resolved configuration.
//
// Unknown YAML keys are rejected so a typo in a profile file fails the
// load instead of silently probing with defaults.
func LoadProfiles(path string) ([]ProbeTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file profileFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}

	targets := make([]ProbeTarget, 0, len(file.Targets))
	seen := make(map[string]struct{}, len(file.Targets))

	for i, spec := range file.Targets {
		if spec.Name == "" {
			return nil, fmt.Errorf("target %d: name is required", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("target %d: duplicate name '%s'", i, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		typ := spec.Type
		if typ == "" {
			typ = TargetTypeHTTP
		}

		method := spec.Method
		switch typ {
		case TargetTypeHTTP:
			if err := ValidateProbeURL(spec.URL); err != nil {
				return nil, fmt.Errorf("target '%s': %w", spec.Name, err)
			}
			if method == "" {
				method = "GET"
			}
			if method != "GET" && method != "HEAD" {
				return nil, fmt.Errorf("target '%s': method must be GET or HEAD, got '%s'", spec.Name, method)
			}
			if spec.ExpectStatus != 0 && (spec.ExpectStatus < 100 || spec.ExpectStatus > 599) {
				return nil, fmt.Errorf("target '%s': expect_status must be a valid HTTP status, got %d", spec.Name, spec.ExpectStatus)
			}
			if spec.GRPCService != "" {
				return nil, fmt.Errorf("target '%s': grpc_service applies only to grpc targets", spec.Name)
			}
		case TargetTypeGRPC:
			if err := ValidateGRPCAddress(spec.URL); err != nil {
				return nil, fmt.Errorf("target '%s': %w", spec.Name, err)
			}
			if spec.Method != "" {
				return nil, fmt.Errorf("target '%s': method applies only to http targets", spec.Name)
			}
			if spec.ExpectStatus != 0 {
				return nil, fmt.Errorf("target '%s': expect_status applies only to http targets", spec.Name)
			}
		default:
			return nil, fmt.Errorf("target '%s': type must be http or grpc, got '%s'", spec.Name, typ)
		}

		var base resilience.Config
		if spec.Profile != "" {
			base, err = profileByClass(spec.Profile)
			if err != nil {
				return nil, fmt.Errorf("target '%s': %w", spec.Name, err)
			}
		} else {
			base = file.Defaults.apply(defaultProbeProfile())
		}

		cfg := spec.Resilience.apply(base)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("target '%s': resilience config: %w", spec.Name, err)
		}

		targets = append(targets, ProbeTarget{
			Name:         spec.Name,
			Type:         typ,
			URL:          spec.URL,
			Method:       method,
			ExpectStatus: spec.ExpectStatus,
			GRPCService:  spec.GRPCService,
			Resilience:   cfg,
		})
	}

	return targets, nil
}
