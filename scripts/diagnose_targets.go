package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"breakwater/internal/config"
)

// TargetDiagnostic represents the diagnostic result for a single probe target
type TargetDiagnostic struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	URL           string `json:"url"`
	Status        string `json:"status"` // "OK", "HTTP_ERROR", "UNEXPECTED_STATUS", "TIMEOUT", "REDIRECT", "NOT_SERVING", "RPC_ERROR"
	HTTPCode      int    `json:"http_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	ResponseTime  int64  `json:"response_time_ms"`
	ContentLength int64  `json:"content_length,omitempty"`
}

func main() {
	profilesPath := os.Getenv("PROFILES_PATH")
	if profilesPath == "" {
		profilesPath = "profiles.yaml"
		log.Println("PROFILES_PATH not set, using profiles.yaml")
	}

	targets, err := config.LoadProfiles(profilesPath)
	if err != nil {
		log.Fatalf("Failed to load profiles: %v", err)
	}

	log.Printf("Diagnosing %d probe targets...\n", len(targets))

	// Diagnose each target directly, without retries or breakers, so
	// the report shows the raw behavior of each endpoint.
	diagnostics := make([]TargetDiagnostic, 0, len(targets))
	for i, target := range targets {
		log.Printf("[%d/%d] Diagnosing: %s", i+1, len(targets), target.Name)
		diag := diagnoseTarget(target, 30*time.Second)
		diagnostics = append(diagnostics, diag)

		// Rate limiting to be nice to servers
		time.Sleep(500 * time.Millisecond)
	}

	generateReport(diagnostics)
	generateJSONReport(diagnostics)
}

func diagnoseTarget(target config.ProbeTarget, timeout time.Duration) TargetDiagnostic {
	// Reports get attached to tickets, so credentialed URLs are masked.
	diag := TargetDiagnostic{
		Name: target.Name,
		Type: target.Type,
		URL:  config.RedactURL(target.URL),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	startTime := time.Now()
	if target.Type == config.TargetTypeGRPC {
		diagnoseGRPC(ctx, target, &diag)
	} else {
		diagnoseHTTP(ctx, target, &diag, timeout)
	}
	diag.ResponseTime = time.Since(startTime).Milliseconds()

	return diag
}

func diagnoseHTTP(ctx context.Context, target config.ProbeTarget, diag *TargetDiagnostic, timeout time.Duration) {
	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, nil)
	if err != nil {
		diag.Status = "REQUEST_ERROR"
		diag.ErrorMessage = config.RedactURL(err.Error())
		return
	}

	req.Header.Set("User-Agent", "breakwater-diagnostic/1.0")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
			diag.ErrorMessage = fmt.Sprintf("Request timeout after %v", timeout)
		} else {
			diag.Status = "HTTP_ERROR"
			diag.ErrorMessage = config.RedactURL(err.Error())
		}
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	diag.HTTPCode = resp.StatusCode
	diag.ContentLength = resp.ContentLength

	// Check for redirects
	if resp.Request.URL.String() != target.URL {
		diag.RedirectURL = config.RedactURL(resp.Request.URL.String())
		diag.Status = "REDIRECT"
	}

	expected := resp.StatusCode >= 200 && resp.StatusCode < 300
	if target.ExpectStatus != 0 {
		expected = resp.StatusCode == target.ExpectStatus
	}
	if !expected {
		diag.Status = "UNEXPECTED_STATUS"
		diag.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return
	}

	if diag.Status == "" {
		diag.Status = "OK"
	}
}

func diagnoseGRPC(ctx context.Context, target config.ProbeTarget, diag *TargetDiagnostic) {
	conn, err := grpc.NewClient(target.URL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		diag.Status = "REQUEST_ERROR"
		diag.ErrorMessage = err.Error()
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: target.GRPCService,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
		} else {
			diag.Status = "RPC_ERROR"
		}
		diag.ErrorMessage = err.Error()
		return
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		diag.Status = "NOT_SERVING"
		diag.ErrorMessage = fmt.Sprintf("health status %s", resp.GetStatus())
		return
	}

	diag.Status = "OK"
}

// writef is a helper to write to file and handle errors
func writef(f *os.File, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(f, format, args...)
	return err
}

func generateReport(diagnostics []TargetDiagnostic) {
	f, err := os.Create("target_diagnostic_report.txt")
	if err != nil {
		log.Printf("Failed to create report file: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close report file: %v", err)
		}
	}()

	// Helper to handle write errors
	writeErr := func(err error) bool {
		if err != nil {
			log.Printf("Failed to write to report: %v", err)
			return true
		}
		return false
	}

	if writeErr(writef(f, "===============================================\n")) {
		return
	}
	if writeErr(writef(f, "Probe Target Diagnostic Report\n")) {
		return
	}
	if writeErr(writef(f, "Generated: %s\n", time.Now().Format(time.RFC3339))) {
		return
	}
	if writeErr(writef(f, "Total Targets: %d\n", len(diagnostics))) {
		return
	}
	if writeErr(writef(f, "===============================================\n\n")) {
		return
	}

	// Summary statistics
	statusCount := make(map[string]int)
	var okCount, errorCount int
	for _, d := range diagnostics {
		statusCount[d.Status]++
		if d.Status == "OK" || d.Status == "REDIRECT" {
			okCount++
		} else {
			errorCount++
		}
	}

	_ = writef(f, "SUMMARY:\n")
	_ = writef(f, "  ✅ Reachable: %d (%.1f%%)\n", okCount, float64(okCount)/float64(len(diagnostics))*100)
	_ = writef(f, "  ❌ Broken: %d (%.1f%%)\n", errorCount, float64(errorCount)/float64(len(diagnostics))*100)
	_ = writef(f, "\nSTATUS BREAKDOWN:\n")
	for status, count := range statusCount {
		_ = writef(f, "  %s: %d\n", status, count)
	}
	_ = writef(f, "\n")

	// Detailed results
	_ = writef(f, "DETAILED RESULTS:\n")
	_ = writef(f, "===============================================\n\n")

	// Reachable targets
	_ = writef(f, "✅ REACHABLE TARGETS (%d):\n", statusCount["OK"]+statusCount["REDIRECT"])
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status == "OK" || d.Status == "REDIRECT" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  Target: %s (%s)\n", d.URL, d.Type)
			if d.Type == config.TargetTypeGRPC {
				_ = writef(f, "  Response: %dms\n", d.ResponseTime)
			} else {
				_ = writef(f, "  Response: %dms | HTTP: %d\n", d.ResponseTime, d.HTTPCode)
			}
			if d.RedirectURL != "" {
				_ = writef(f, "  ⚠️  Redirected to: %s\n", d.RedirectURL)
			}
			_ = writef(f, "\n")
		}
	}

	// Broken targets
	_ = writef(f, "\n❌ BROKEN TARGETS (%d):\n", errorCount)
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status != "OK" && d.Status != "REDIRECT" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  Target: %s (%s)\n", d.URL, d.Type)
			_ = writef(f, "  Status: %s | HTTP: %d\n", d.Status, d.HTTPCode)
			_ = writef(f, "  Error: %s\n", d.ErrorMessage)
			_ = writef(f, "  Response: %dms\n", d.ResponseTime)
			_ = writef(f, "\n")
		}
	}

	log.Println("✅ Text report generated: target_diagnostic_report.txt")
}

func generateJSONReport(diagnostics []TargetDiagnostic) {
	f, err := os.Create("target_diagnostic_report.json")
	if err != nil {
		log.Printf("Failed to create JSON report: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close JSON report file: %v", err)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}

	log.Println("✅ JSON report generated: target_diagnostic_report.json")
}
