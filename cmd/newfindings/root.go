package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/newfindings/internal/report"
)

var version = "0.1.0"

type options struct {
	days         int
	name         string
	accounts     []string
	emails       []string
	configPath   string
	format       string
	template     string
	excludeTypes []string
	excludeSevs  []string
	debug        bool
	metricsFile  string
	otelEndpoint string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "newfindings",
		Short: "Report new Dome9 compliance findings",
		Long: `newfindings compares the newest assessment run of each cloud account on a
baseline day with the run of today, and reports every rule and entity that
became non compliant in between. Results are printed and, when recipients are
given, emailed as an HTML table.`,
		Example: `  newfindings -n "AWS CIS Foundations v1.2.0" -a 0a1b2c3d
  newfindings -n CIS -a acc-1,acc-2 -d 14 -e secops@example.com
  newfindings -n CIS -a acc-1 --format json --config newfindings.toml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.days, "days", "d", 7, "Days between the baseline and today")
	f.StringVarP(&opts.name, "name", "n", "", "Assessment name")
	f.StringSliceVarP(&opts.accounts, "accounts", "a", nil, "Dome9 cloud account ids")
	f.StringSliceVarP(&opts.emails, "email", "e", nil, "Report recipients")
	f.StringVar(&opts.configPath, "config", "", "Config file (.toml, .yaml)")
	f.StringVar(&opts.format, "format", "", "Console output format (text, json)")
	f.StringVar(&opts.template, "template", "", "HTML template for the email table")
	f.StringSliceVar(&opts.excludeTypes, "exclude-type", nil, "Entity types left out of the report")
	f.StringSliceVar(&opts.excludeSevs, "exclude-severity", nil, "Severities left out of the report")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	f.StringVar(&opts.otelEndpoint, "otel-endpoint", "", "OTLP gRPC endpoint")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("accounts")

	cmd.SetVersionTemplate("newfindings {{.Version}}\n")
	return cmd
}

func (o *options) validate() error {
	if o.days < 0 {
		return fmt.Errorf("--days must not be negative (got %d)", o.days)
	}
	if o.name == "" {
		return fmt.Errorf("--name must not be empty")
	}
	o.accounts = dedupe(o.accounts)
	if len(o.accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for _, addr := range o.emails {
		if err := report.ValidateEmail(addr); err != nil {
			return err
		}
	}
	return nil
}

// dedupe drops repeated and empty ids, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Execute runs the root command. Failures are reported on stderr and the
// process still exits 0.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
