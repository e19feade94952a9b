package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by the container HEALTHCHECK to monitor the server.
It exits with code 0 if the server is healthy, non-zero otherwise.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy, degraded or unreachable`,
		SilenceUsage: true,
		RunE:         runHealthcheck,
	}

	healthcheckTimeout    int
	healthcheckURL        string
	healthcheckRetries    int
	healthcheckRetryDelay time.Duration
	healthcheckFormat     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	healthcheckCmd.Flags().IntVar(&healthcheckRetries, "retries", 0, "number of retries after a failed check")
	healthcheckCmd.Flags().DurationVar(&healthcheckRetryDelay, "retry-delay", 2*time.Second, "delay between retries")
	healthcheckCmd.Flags().StringVar(&healthcheckFormat, "format", "simple", "output format (simple, table, json)")
}

// HealthResponse mirrors the body served by GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is one probe of one URL.
type HealthCheckResult struct {
	URL        string          `json:"url"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	IsHealthy  bool            `json:"is_healthy"`
	LatencyMs  int64           `json:"latency_ms"`
	RetryCount int             `json:"retry_count,omitempty"`
	Error      string          `json:"error,omitempty"`
	Response   *HealthResponse `json:"response,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	result := performHealthCheckWithRetries(determineHealthCheckURL())
	writeResults(cmd.OutOrStdout(), []HealthCheckResult{result})
	if !result.IsHealthy {
		if result.Error != "" {
			return fmt.Errorf("health check failed: %s", result.Error)
		}
		return fmt.Errorf("unhealthy: status=%s", result.Status)
	}
	return nil
}

func determineHealthCheckURL() string {
	if healthcheckURL != "" {
		return healthcheckURL
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(url string) HealthCheckResult {
	result := HealthCheckResult{URL: url, Status: "unknown"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "unreachable"
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = fmt.Sprintf("parse response: %v", err)
		return result
	}
	result.Response = &body
	result.Status = body.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && body.Status == "healthy"
	return result
}

func performHealthCheckWithRetries(url string) HealthCheckResult {
	result := performHealthCheck(url)
	for attempt := 1; attempt <= healthcheckRetries && !result.IsHealthy; attempt++ {
		time.Sleep(healthcheckRetryDelay)
		result = performHealthCheck(url)
		result.RetryCount = attempt
	}
	return result
}

func writeResults(out io.Writer, results []HealthCheckResult) {
	switch healthcheckFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
	case "table":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "URL\tSTATUS\tCODE\tLATENCY\tCHECKS")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%dms\t%s\n", r.URL, r.Status, r.StatusCode, r.LatencyMs, summarizeChecks(r.Response))
		}
		_ = tw.Flush()
	default:
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(out, "%s: %s (%s)\n", r.URL, r.Status, r.Error)
				continue
			}
			fmt.Fprintf(out, "%s: %s (%dms)\n", r.URL, r.Status, r.LatencyMs)
		}
	}
}

func summarizeChecks(resp *HealthResponse) string {
	if resp == nil || len(resp.Checks) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(resp.Checks))
	for _, name := range []string{"database", "migrations", "job_queue"} {
		if check, ok := resp.Checks[name]; ok {
			parts = append(parts, name+"="+check.Status)
		}
	}
	return strings.Join(parts, ",")
}
