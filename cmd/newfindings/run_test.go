package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yairfalse/newfindings/internal/config"
	"github.com/yairfalse/newfindings/internal/dome9"
	"github.com/yairfalse/newfindings/internal/report"
	"github.com/yairfalse/newfindings/internal/snapshot"
)

// fakeAPI serves one page of runs per day, keyed by the query's start date.
type fakeAPI struct {
	runs    map[string][]dome9.HistoryEntry
	results map[dome9.RunID]*dome9.AssessmentResult
	fail    bool
}

func (f *fakeAPI) SearchHistory(_ context.Context, q dome9.HistoryQuery) (*dome9.HistoryPage, error) {
	if f.fail {
		return nil, &dome9.APIError{Method: http.MethodPost, Path: "AssessmentHistoryV2/view/timeRange", StatusCode: 401, Status: "401 Unauthorized"}
	}
	day := strings.TrimSuffix(q.CreationTime.From, "T00:00:00Z")
	return &dome9.HistoryPage{PageSize: 1, Results: f.runs[day]}, nil
}

func (f *fakeAPI) GetAssessment(_ context.Context, id dome9.RunID) (*dome9.AssessmentResult, error) {
	return f.results[id], nil
}

func (f *fakeAPI) GetCloudAccount(_ context.Context, id string) (*dome9.CloudAccount, error) {
	return &dome9.CloudAccount{ID: id, Name: "production"}, nil
}

type fakeSender struct {
	sent []report.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg report.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func sshTest(groups ...int) dome9.RuleTest {
	t := dome9.RuleTest{
		NonComplyingCount: len(groups),
		Rule:              dome9.Rule{RuleID: "R1", Name: "Open SSH", Severity: "High", Remediation: "close 22"},
	}
	for _, i := range groups {
		t.EntityResults = append(t.EntityResults, dome9.EntityResult{TestObj: dome9.TestObject{
			ID:          []string{"sg-a", "sg-b"}[i],
			EntityType:  "securityGroup",
			EntityIndex: dome9.NewEntityIndex(i),
		}})
	}
	return t
}

var (
	now      = time.Date(2024, 3, 9, 15, 30, 0, 0, time.UTC)
	entities = map[string][]dome9.TestEntity{"securityGroup": {{Name: "web"}, {Name: "db"}}}
)

func newAPI() *fakeAPI {
	run := func(id string) dome9.HistoryEntry {
		return dome9.HistoryEntry{ID: dome9.RunID(id), Request: dome9.AssessmentRequest{
			Name:                "CIS",
			Dome9CloudAccountID: "acc-1",
		}}
	}
	return &fakeAPI{
		runs: map[string][]dome9.HistoryEntry{
			"2024-03-02": {run("old")},
			"2024-03-09": {run("new")},
		},
		results: map[dome9.RunID]*dome9.AssessmentResult{
			"old": {Tests: []dome9.RuleTest{sshTest(0)}, TestEntities: entities},
			"new": {Tests: []dome9.RuleTest{sshTest(0, 1)}, TestEntities: entities},
		},
	}
}

func newPipeline(api *fakeAPI, out *bytes.Buffer, mailer sender, recipients ...string) *pipeline {
	html, err := report.NewHTML("")
	if err != nil {
		panic(err)
	}
	return &pipeline{
		assessment: "CIS",
		accounts:   []string{"acc-1"},
		days:       7,
		recipients: recipients,
		now:        func() time.Time { return now },
		builder:    snapshot.NewBuilder(api),
		console:    report.NewConsole(out, report.FormatText),
		html:       html,
		mailer:     mailer,
		tracer:     noop.NewTracerProvider().Tracer("test"),
	}
}

func TestPipeline_PrintsNewFindings(t *testing.T) {
	var out bytes.Buffer
	mailer := &fakeSender{}

	require.NoError(t, newPipeline(newAPI(), &out, mailer).run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Assessment: CIS => Cloud Account: acc-1 (production)")
	assert.Contains(t, text, "Rule Name: Open SSH")
	assert.Contains(t, text, "Type: securityGroup => Name: db")
	assert.NotContains(t, text, "Name: web")
	assert.Empty(t, mailer.sent)
}

func TestPipeline_EmailsRecipients(t *testing.T) {
	var out bytes.Buffer
	mailer := &fakeSender{}

	p := newPipeline(newAPI(), &out, mailer, "secops@example.com")
	require.NoError(t, p.run(context.Background()))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"secops@example.com"}, msg.To)
	assert.Equal(t, "Dome 9: CIS Assessment - New Findings Since 2024-03-02", msg.Subject)
	assert.Contains(t, msg.HTML, "https://secure.dome9.com/v2/security-group/aws/sg-b")
	assert.NotEmpty(t, out.String())
}

func TestPipeline_SkipsEmailWithoutSMTP(t *testing.T) {
	var out bytes.Buffer
	mailer := &fakeSender{}

	p := newPipeline(newAPI(), &out, mailer, "secops@example.com")
	p.smtpMissing = []string{config.EnvSMTPServer}
	require.NoError(t, p.run(context.Background()))

	assert.Empty(t, mailer.sent)
	assert.Contains(t, out.String(), "Rule Name: Open SSH")
}

func TestPipeline_DeliveryErrorAfterConsoleOutput(t *testing.T) {
	var out bytes.Buffer
	mailer := &fakeSender{err: report.ErrDelivery}

	err := newPipeline(newAPI(), &out, mailer, "secops@example.com").run(context.Background())
	require.ErrorIs(t, err, report.ErrDelivery)
	assert.Contains(t, out.String(), "Rule Name: Open SSH")
}

func TestPipeline_APIErrorAbortsBeforeOutput(t *testing.T) {
	api := newAPI()
	api.fail = true
	var out bytes.Buffer

	err := newPipeline(api, &out, &fakeSender{}).run(context.Background())

	var apiErr *dome9.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Empty(t, out.String())
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		config.EnvAPIKey:     "key",
		config.EnvAPISecret:  "secret",
		config.EnvSMTPServer: "smtp.example.com",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := loadConfig(&options{format: "json", otelEndpoint: "collector:4317", metricsFile: "/tmp/nf.prom"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.API.Key)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, "collector:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 1.0, cfg.OTEL.Traces.SampleRate)
	assert.Equal(t, "/tmp/nf.prom", cfg.OTEL.Metrics.Textfile)
	assert.Contains(t, cfg.MissingSMTP(), config.EnvSMTPPort)
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	_, err := loadConfig(&options{}, func(string) (string, bool) { return "", false })

	var missing *config.MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, config.EnvAPIKey, missing.Name)
}

func TestRootCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing name", []string{"-a", "acc-1"}, "name"},
		{"missing accounts", []string{"-n", "CIS"}, "accounts"},
		{"bad email", []string{"-n", "CIS", "-a", "acc-1", "-e", "not-an-address"}, "invalid email address"},
		{"negative days", []string{"-n", "CIS", "-a", "acc-1", "--days=-1"}, "--days"},
		{"empty accounts", []string{"-n", "CIS", "-a", ","}, "at least one account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRootCmd_Defaults(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-n", "CIS", "-a", "acc-1,acc-2", "-a", "acc-3", "-e", "a@b.com"}))

	days, err := cmd.Flags().GetInt("days")
	require.NoError(t, err)
	assert.Equal(t, 7, days)

	accounts, err := cmd.Flags().GetStringSlice("accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2", "acc-3"}, accounts)
}

func TestOptionsValidate_DropsDuplicateAccounts(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-n", "CIS", "-a", "acc-2,acc-1", "-a", "acc-2", "-a", "acc-1"}))

	accounts, err := cmd.Flags().GetStringSlice("accounts")
	require.NoError(t, err)

	opts := &options{name: "CIS", accounts: accounts}
	require.NoError(t, opts.validate())
	assert.Equal(t, []string{"acc-2", "acc-1"}, opts.accounts)
}

func TestPipeline_DuplicateAccountsReportedOnce(t *testing.T) {
	var out bytes.Buffer
	mailer := &fakeSender{}

	p := newPipeline(newAPI(), &out, mailer, "secops@example.com")
	p.accounts = []string{"acc-1", "acc-1"}
	require.NoError(t, p.run(context.Background()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, 1, strings.Count(mailer.sent[0].HTML, "sg-b"))
}
