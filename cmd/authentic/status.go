// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authentic-auth/authentic/internal/config"
)

// probeTimeout bounds each health probe.
const probeTimeout = 3 * time.Second

// ServiceStatus holds the health of a running Authentic server.
type ServiceStatus struct {
	Endpoint string `json:"endpoint"`
	Live     bool   `json:"live"`
	Ready    bool   `json:"ready"`
	Error    string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	addr       string
}

// NewStatusCmd creates the status subcommand with all flags configured.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Authentic server",
		Long: `Query the liveness and readiness endpoints of a running server.
Readiness includes connectivity to the principal store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	// Register flags
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.addr, "addr", "", "metrics/health address (default: metrics_addr from configuration)")

	return cmd
}

// runStatus executes the status command. It fails when the server is not
// ready so scripts can rely on the exit code.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	addr := cfg.addr
	if addr == "" {
		path, err := resolveConfigFile()
		if err != nil {
			return oops.With("operation", "locate configuration").Wrap(err)
		}
		loaded, err := config.Read(path, nil)
		if err != nil {
			return oops.With("operation", "load configuration").Wrap(err)
		}
		addr = loaded.MetricsAddr
	}
	if addr == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "metrics_addr").
			Errorf("metrics address is disabled; pass --addr")
	}

	client := &http.Client{Timeout: probeTimeout}
	status := queryServiceStatus(cmd.Context(), client, endpointURL(addr))

	var output string
	if cfg.jsonOutput {
		var err error
		output, err = formatStatusJSON(status)
		if err != nil {
			return oops.With("operation", "format status").Wrap(err)
		}
	} else {
		output = formatStatusTable(status)
	}
	cmd.Println(output)

	if !status.Ready {
		return oops.Code("SERVICE_NOT_READY").With("endpoint", status.Endpoint).Errorf("service is not ready")
	}
	return nil
}

// endpointURL turns a listen address into a base URL. Wildcard hosts are
// probed on loopback.
func endpointURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	if rest, ok := strings.CutPrefix(addr, "0.0.0.0:"); ok {
		addr = "127.0.0.1:" + rest
	}
	return "http://" + addr
}

// queryServiceStatus probes the liveness and readiness endpoints at base.
func queryServiceStatus(ctx context.Context, client *http.Client, base string) ServiceStatus {
	status := ServiceStatus{Endpoint: base}

	live, err := probe(ctx, client, base+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Live = live

	ready, err := probe(ctx, client, base+"/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}
	status.Ready = ready
	if live && !ready {
		status.Error = "principal store unreachable"
	}
	return status
}

// probe reports whether url answered 200.
func probe(ctx context.Context, client *http.Client, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err //nolint:wrapcheck // formatted into the status
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err //nolint:wrapcheck // formatted into the status
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ENDPOINT\tLIVE\tREADY\tDETAIL")
	_, _ = fmt.Fprintln(w, "--------\t----\t-----\t------")

	detail := "-"
	if status.Error != "" {
		detail = status.Error
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		status.Endpoint, yesNo(status.Live), yesNo(status.Ready), detail)

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
