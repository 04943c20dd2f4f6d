package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/chriscorrea/cram/internal/plan"
	"github.com/chriscorrea/cram/internal/relevance"
)

func sampleReport() *Report {
	entries := []plan.Entry{
		{Topic: "Parsing | LR", Count: 3, Weightage: 75, Priority: plan.High, ExampleQuestions: []string{"Construct an LR table."}},
		{Topic: "Lexing", Count: 1, Weightage: 25, Priority: plan.High, ExampleQuestions: []string{"Define a token."}},
	}
	return &Report{
		RunID:       "0b7e1c1e-8c53-4d55-9c3a-6d0c9f0bde11",
		Subject:     "Compilers",
		GeneratedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Strategy:    relevance.StrategyTFIDF,
		Threshold:   0.1,
		Topics:      []string{"Parsing | LR", "Lexing"},
		Papers: []PaperSummary{
			{Filename: "2023.pdf", Method: "pdf-text", Extracted: 5, Retained: 4},
			{Filename: "bad.pdf", Skipped: "no text extracted"},
		},
		Questions: []plan.Paper{{Filename: "2023.pdf", Questions: []relevance.Record{
			{Question: "Construct an LR table.", Topic: "Parsing | LR", Similarity: 0.42},
		}}},
		Plan:    entries,
		Summary: plan.Summarize(entries),
	}
}

func TestRenderPlan_Markdown(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPlan(&buf, sampleReport(), Markdown); err != nil {
		t.Fatalf("RenderPlan() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Study plan: Compilers",
		"High priority: 2",
		"threshold 0.10",
		"| 2023.pdf | pdf-text | 5 | 4 |",
		"skipped: no text extracted",
		`| 1 | Parsing \| LR | 3 | 75.0% | High |`,
		"### 2. Lexing",
		"- Define a token.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlan_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPlan(&buf, sampleReport(), Text); err != nil {
		t.Fatalf("RenderPlan() error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "|") && strings.Contains(out, "---") {
		t.Errorf("text output contains markdown table syntax:\n%s", out)
	}
	for _, want := range []string{"Study plan: Compilers", "RANK", "75.0%", "   - Construct an LR table."} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlan_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPlan(&buf, sampleReport(), JSON); err != nil {
		t.Fatalf("RenderPlan() error: %v", err)
	}

	var decoded struct {
		RunID string `json:"run_id"`
		Plan  []struct {
			Topic    string `json:"topic"`
			Priority string `json:"priority"`
		} `json:"plan"`
		Summary plan.Summary `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.RunID != sampleReport().RunID {
		t.Errorf("run_id = %q", decoded.RunID)
	}
	if len(decoded.Plan) != 2 || decoded.Plan[0].Priority != "High" {
		t.Errorf("plan = %+v, want priorities encoded as text", decoded.Plan)
	}
	if decoded.Summary.High != 2 {
		t.Errorf("summary.high = %d, want 2", decoded.Summary.High)
	}
}

func TestRenderPlan_EmptyPlan(t *testing.T) {
	r := sampleReport()
	r.Plan = nil
	r.Summary = plan.Summarize(nil)

	var buf bytes.Buffer
	if err := RenderPlan(&buf, r, Markdown); err != nil {
		t.Fatalf("RenderPlan() error: %v", err)
	}
	if !strings.Contains(buf.String(), "No questions matched the syllabus") {
		t.Errorf("empty plan not reported:\n%s", buf.String())
	}
}

func TestRenderQuestions(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{Markdown, "- Construct an LR table. _(Parsing | LR, 0.42)_"},
		{Text, "Parsing | LR  0.42  Construct an LR table."},
		{JSON, `"similarity": 0.42`},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderQuestions(&buf, sampleReport(), tt.format); err != nil {
				t.Fatalf("RenderQuestions() error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestRenderQuestions_UnknownHasNoScore(t *testing.T) {
	r := sampleReport()
	r.Questions[0].Questions = relevance.KeepAll([]string{"Define a token."})

	var buf bytes.Buffer
	if err := RenderQuestions(&buf, r, Markdown); err != nil {
		t.Fatalf("RenderQuestions() error: %v", err)
	}
	if want := "- Define a token. _(Unknown)_"; !strings.Contains(buf.String(), want) {
		t.Errorf("output missing %q:\n%s", want, buf.String())
	}
}

func TestRenderHits(t *testing.T) {
	hits := []SearchHit{{Question: "Construct an LR table.", Topic: "Parsing", Filename: "2023.pdf", Score: 2.5}}

	var md bytes.Buffer
	if err := RenderHits(&md, "LR", hits, Markdown); err != nil {
		t.Fatalf("RenderHits() error: %v", err)
	}
	if !strings.Contains(md.String(), "1. Construct an LR table.") || !strings.Contains(md.String(), "score 2.50") {
		t.Errorf("markdown hits:\n%s", md.String())
	}

	var empty bytes.Buffer
	if err := RenderHits(&empty, "LR", []SearchHit{}, Text); err != nil {
		t.Fatalf("RenderHits() error: %v", err)
	}
	if !strings.Contains(empty.String(), `No questions match "LR"`) {
		t.Errorf("empty text hits:\n%s", empty.String())
	}

	var js bytes.Buffer
	if err := RenderHits(&js, "LR", []SearchHit{}, JSON); err != nil {
		t.Fatalf("RenderHits() error: %v", err)
	}
	if strings.TrimSpace(js.String()) != "[]" {
		t.Errorf("empty JSON hits = %q, want []", js.String())
	}
}

func TestRenderTopics(t *testing.T) {
	var md bytes.Buffer
	if err := RenderTopics(&md, []string{"Parsing", "Lexing"}, Markdown); err != nil {
		t.Fatalf("RenderTopics() error: %v", err)
	}
	if !strings.Contains(md.String(), "- Parsing\n- Lexing\n") {
		t.Errorf("markdown topics:\n%s", md.String())
	}

	var js bytes.Buffer
	if err := RenderTopics(&js, nil, JSON); err != nil {
		t.Fatalf("RenderTopics() error: %v", err)
	}
	if strings.TrimSpace(js.String()) != "[]" {
		t.Errorf("nil topics JSON = %q, want []", js.String())
	}
}
