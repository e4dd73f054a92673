package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/newfindings/internal/dome9"
	"github.com/yairfalse/newfindings/internal/telemetry"
	"github.com/yairfalse/newfindings/pkg/finding"
)

// Fetcher retrieves assessment data from the upstream API.
type Fetcher interface {
	SearchHistory(ctx context.Context, q dome9.HistoryQuery) (*dome9.HistoryPage, error)
	GetAssessment(ctx context.Context, id dome9.RunID) (*dome9.AssessmentResult, error)
	GetCloudAccount(ctx context.Context, id string) (*dome9.CloudAccount, error)
}

// Request selects the assessment runs of one snapshot.
type Request struct {
	Assessment string    // assessment name, matched exactly
	Accounts   []string  // Dome9 cloud account ids
	Day        time.Time // UTC day of the runs
}

// Builder assembles snapshots. Calls to Build are independent; each page
// request carries its own query value.
type Builder struct {
	fetcher Fetcher
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures a Builder.
type Option func(*Builder)

// WithMetrics records pagination and resolution counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder creates a snapshot builder.
func NewBuilder(f Fetcher, opts ...Option) *Builder {
	b := &Builder{
		fetcher: f,
		tracer:  otel.Tracer("newfindings/snapshot"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build pages through the assessment history of req.Day, newest first, until
// every requested account has a run or the reported pages are exhausted.
// Accounts without a run keep an empty, unresolved entry.
func (b *Builder) Build(ctx context.Context, req Request) (*finding.Snapshot, error) {
	day := req.Day.UTC().Format(time.DateOnly)
	ctx, span := b.tracer.Start(ctx, "snapshot.build", trace.WithAttributes(
		attribute.String("assessment", req.Assessment),
		attribute.String("day", day),
		attribute.Int("accounts", len(req.Accounts)),
	))
	defer span.End()

	snap, err := b.build(ctx, req, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return snap, nil
}

func (b *Builder) build(ctx context.Context, req Request, day string) (*finding.Snapshot, error) {
	start := time.Now()
	snap := finding.NewSnapshot(req.Assessment, req.Day, req.Accounts)

	pending := make(map[string]bool, len(req.Accounts))
	for _, id := range req.Accounts {
		pending[id] = true
	}

	for page := 1; len(pending) > 0; page++ {
		hp, err := b.fetcher.SearchHistory(ctx, dome9.NewHistoryQuery(req.Day, page))
		if err != nil {
			return nil, fmt.Errorf("search history %s page %d: %w", day, page, err)
		}
		b.metrics.RecordPage(ctx, day)

		log.Debug().
			Ctx(ctx).
			Str("day", day).
			Int("page", page).
			Int("page_size", hp.PageSize).
			Int("results", len(hp.Results)).
			Msg("history page")

		for _, entry := range hp.Results {
			accountID := entry.Request.Dome9CloudAccountID
			if entry.Request.Name != req.Assessment || !pending[accountID] {
				continue
			}
			if err := b.resolve(ctx, snap, entry); err != nil {
				return nil, err
			}
			delete(pending, accountID)
			b.metrics.RecordAccountResolved(ctx, day)
			if len(pending) == 0 {
				break
			}
		}

		if page >= hp.PageSize {
			break
		}
	}

	for id := range pending {
		log.Warn().
			Ctx(ctx).
			Str("account", id).
			Str("assessment", req.Assessment).
			Str("day", day).
			Msg("no assessment run found")
	}
	b.metrics.RecordBuildDuration(ctx, day, time.Since(start))

	return snap, nil
}

func (b *Builder) resolve(ctx context.Context, snap *finding.Snapshot, entry dome9.HistoryEntry) error {
	accountID := entry.Request.Dome9CloudAccountID

	result, err := b.fetcher.GetAssessment(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("get assessment %s: %w", entry.ID, err)
	}

	rules, err := Extract(result.Tests, result.TestEntities)
	if err != nil {
		return fmt.Errorf("extract assessment %s: %w", entry.ID, err)
	}

	account, err := b.fetcher.GetCloudAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get cloud account %s: %w", accountID, err)
	}

	as := snap.Accounts[accountID]
	as.Account = finding.Account{
		ID:         accountID,
		Name:       account.Name,
		ExternalID: entry.Request.ExternalCloudAccountID,
	}
	as.SetRules(rules)
	as.Resolved = true

	log.Info().
		Ctx(ctx).
		Str("account", accountID).
		Str("name", account.Name).
		Str("run", string(entry.ID)).
		Int("violated_rules", len(rules)).
		Msg("assessment run resolved")

	return nil
}
