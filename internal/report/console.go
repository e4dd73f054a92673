package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Output formats of the console reporter.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Console writes a report transcript.
type Console struct {
	w      io.Writer
	format string

	header   lipgloss.Style
	severity lipgloss.Style
	rule     lipgloss.Style
	title    cases.Caser
}

// NewConsole creates a console reporter writing format to w.
func NewConsole(w io.Writer, format string) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:        w,
		format:   format,
		header:   r.NewStyle().Bold(true),
		severity: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		rule:     r.NewStyle().Foreground(lipgloss.Color("12")),
		title:    cases.Title(language.English),
	}
}

// Write renders doc.
func (c *Console) Write(doc Document) error {
	if c.format == FormatJSON {
		if err := json.MarshalWrite(c.w, doc, jsontext.WithIndent("  "), json.Deterministic(true)); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err := fmt.Fprintln(c.w)
		return err
	}

	for _, section := range doc.Accounts {
		if err := c.writeAccount(doc.Assessment, section); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) writeAccount(assessment string, section AccountSection) error {
	p := &printer{w: c.w}

	account := section.Account.ID
	if section.Account.Name != "" {
		account += " (" + section.Account.Name + ")"
	}
	p.line(c.header.Render("Assessment: " + assessment + " => Cloud Account: " + account))

	if section.Empty() {
		p.line("No new findings")
	}
	for _, sev := range section.Severities {
		p.line(c.severity.Render("[" + c.title.String(sev.Severity) + "]"))
		for _, rule := range sev.Rules {
			p.line(c.rule.Render("Rule Name: " + rule.Name))
			if len(rule.Entities) == 0 {
				p.line("This rule has no entities but it is a new non compliant rule")
			}
			for _, e := range rule.Entities {
				p.line("Type: " + e.Type + " => Name: " + e.Name)
			}
		}
	}
	p.line("")

	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}
