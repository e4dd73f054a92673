package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/newfindings/internal/config"
	"github.com/yairfalse/newfindings/internal/diff"
	"github.com/yairfalse/newfindings/internal/dome9"
	"github.com/yairfalse/newfindings/internal/filter"
	"github.com/yairfalse/newfindings/internal/report"
	"github.com/yairfalse/newfindings/internal/snapshot"
	"github.com/yairfalse/newfindings/internal/telemetry"
)

// sender delivers a rendered report email.
type sender interface {
	Send(ctx context.Context, msg report.Message) error
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg, err := loadConfig(opts, os.LookupEnv)
	if err != nil {
		return err
	}

	if err := telemetry.SetupLogging(os.Stderr, cfg.Log.Level, opts.debug); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	log.Logger = log.With().Str("run_id", uuid.NewString()).Logger()

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	client, err := dome9.New(dome9.Config{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.Key,
		APISecret: cfg.API.Secret,
		Proxy:     cfg.API.Proxy,
		Timeout:   cfg.API.Timeout,
	})
	if err != nil {
		return err
	}

	html, err := report.NewHTML(cfg.Report.Template)
	if err != nil {
		return err
	}

	p := &pipeline{
		assessment:  opts.name,
		accounts:    opts.accounts,
		days:        opts.days,
		recipients:  opts.emails,
		now:         time.Now,
		builder:     snapshot.NewBuilder(client, snapshot.WithMetrics(tp.Metrics())),
		filter:      filter.New(cfg.Report.ExcludeTypes, cfg.Report.ExcludeSeverities),
		console:     report.NewConsole(stdout, cfg.Report.Format),
		html:        html,
		mailer:      report.NewMailer(cfg.SMTP, tp.Metrics()),
		smtpMissing: cfg.MissingSMTP(),
		metrics:     tp.Metrics(),
		tracer:      tp.Tracer(),
	}
	return p.run(ctx)
}

// loadConfig layers the config file, the environment and flags, in that order.
func loadConfig(opts *options, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if opts.format != "" {
		cfg.Report.Format = opts.format
	}
	if opts.template != "" {
		cfg.Report.Template = opts.template
	}
	if len(opts.excludeTypes) > 0 {
		cfg.Report.ExcludeTypes = opts.excludeTypes
	}
	if len(opts.excludeSevs) > 0 {
		cfg.Report.ExcludeSeverities = opts.excludeSevs
	}
	if opts.metricsFile != "" {
		cfg.OTEL.Metrics.Textfile = opts.metricsFile
	}
	if opts.otelEndpoint != "" {
		cfg.OTEL.Endpoint = opts.otelEndpoint
		cfg.OTEL.Traces.Enabled = true
		cfg.OTEL.Metrics.Enabled = true
		if cfg.OTEL.Traces.SampleRate == 0 {
			cfg.OTEL.Traces.SampleRate = 1.0
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type pipeline struct {
	assessment string
	accounts   []string
	days       int
	recipients []string
	now        func() time.Time

	builder     *snapshot.Builder
	filter      *filter.Filter
	console     *report.Console
	html        *report.HTML
	mailer      sender
	smtpMissing []string

	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

func (p *pipeline) run(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "newfindings.run", trace.WithAttributes(
		attribute.String("assessment", p.assessment),
		attribute.StringSlice("accounts", p.accounts),
		attribute.Int("days", p.days),
	))
	defer span.End()

	today := p.now().UTC()
	since := today.AddDate(0, 0, -p.days)

	log.Info().
		Ctx(ctx).
		Str("assessment", p.assessment).
		Strs("accounts", p.accounts).
		Str("since", since.Format(time.DateOnly)).
		Msg("Building snapshots")

	baseline, err := p.builder.Build(ctx, snapshot.Request{
		Assessment: p.assessment,
		Accounts:   p.accounts,
		Day:        since,
	})
	if err != nil {
		return fmt.Errorf("baseline snapshot: %w", err)
	}

	current, err := p.builder.Build(ctx, snapshot.Request{
		Assessment: p.assessment,
		Accounts:   p.accounts,
		Day:        today,
	})
	if err != nil {
		return fmt.Errorf("current snapshot: %w", err)
	}

	result := p.filter.Apply(diff.Compute(baseline, current, p.accounts))
	for id, af := range result {
		for severity, rules := range af.Severities {
			p.metrics.RecordFindings(ctx, id, severity, len(rules))
			for name, rf := range rules {
				telemetry.RecordNewFindingEvent(span, id, severity, name, len(rf.Entities))
			}
		}
	}

	doc := report.NewDocument(p.assessment, since, current, result, p.accounts)
	if err := p.console.Write(doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if len(p.recipients) == 0 {
		return nil
	}
	if len(p.smtpMissing) > 0 {
		log.Warn().
			Ctx(ctx).
			Str("missing", strings.Join(p.smtpMissing, ", ")).
			Msg("SMTP not configured, skipping report email")
		return nil
	}

	body, err := p.html.Render(doc, result)
	if err != nil {
		return err
	}
	return p.mailer.Send(ctx, report.Message{
		To:      p.recipients,
		Subject: report.Subject(p.assessment, since),
		HTML:    body,
	})
}
