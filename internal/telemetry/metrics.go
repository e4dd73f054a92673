package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded during a run.
// A nil *Metrics records nothing.
type Metrics struct {
	historyPages     metric.Int64Counter
	accountsResolved metric.Int64Counter
	buildDuration    metric.Float64Histogram
	newFindings      metric.Int64Counter
	emailsSent       metric.Int64Counter
}

// NewMetrics creates the run instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.historyPages, err = meter.Int64Counter(
		"newfindings_history_pages",
		metric.WithDescription("Assessment history pages fetched"),
	)
	if err != nil {
		return nil, fmt.Errorf("create history_pages: %w", err)
	}

	m.accountsResolved, err = meter.Int64Counter(
		"newfindings_accounts_resolved",
		metric.WithDescription("Accounts with an assessment run found"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accounts_resolved: %w", err)
	}

	m.buildDuration, err = meter.Float64Histogram(
		"newfindings_snapshot_duration_seconds",
		metric.WithDescription("Time taken to build a snapshot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot_duration: %w", err)
	}

	m.newFindings, err = meter.Int64Counter(
		"newfindings_new_findings",
		metric.WithDescription("New findings detected, per rule bucket"),
	)
	if err != nil {
		return nil, fmt.Errorf("create new_findings: %w", err)
	}

	m.emailsSent, err = meter.Int64Counter(
		"newfindings_emails_sent",
		metric.WithDescription("Report emails delivered"),
	)
	if err != nil {
		return nil, fmt.Errorf("create emails_sent: %w", err)
	}

	return m, nil
}

// RecordPage counts one history page fetched for the snapshot day.
func (m *Metrics) RecordPage(ctx context.Context, day string) {
	if m == nil {
		return
	}
	m.historyPages.Add(ctx, 1, metric.WithAttributes(attribute.String("day", day)))
}

// RecordAccountResolved counts an account whose run was found.
func (m *Metrics) RecordAccountResolved(ctx context.Context, day string) {
	if m == nil {
		return
	}
	m.accountsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("day", day)))
}

// RecordBuildDuration records how long a snapshot took to build.
func (m *Metrics) RecordBuildDuration(ctx context.Context, day string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("day", day)))
}

// RecordFindings counts new rule buckets for an account and severity.
func (m *Metrics) RecordFindings(ctx context.Context, account, severity string, n int) {
	if m == nil {
		return
	}
	m.newFindings.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("account", account),
		attribute.String("severity", severity),
	))
}

// RecordEmailSent counts a delivered report email.
func (m *Metrics) RecordEmailSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.emailsSent.Add(ctx, 1)
}
