package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chriscorrea/cram/internal/relevance"
)

// RenderPlan writes the study plan of r in format f.
func RenderPlan(w io.Writer, r *Report, f OutputFormat) error {
	switch f {
	case JSON:
		return writeJSON(w, r)
	case Text:
		return planText(w, r)
	default:
		return planMarkdown(w, r)
	}
}

// RenderQuestions writes the retained questions of every paper.
func RenderQuestions(w io.Writer, r *Report, f OutputFormat) error {
	switch f {
	case JSON:
		return writeJSON(w, r.Questions)
	case Text:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range r.Questions {
			fmt.Fprintf(tw, "%s\n", p.Filename)
			for _, q := range p.Questions {
				fmt.Fprintf(tw, "  %s\t%.2f\t%s\n", q.Topic, q.Similarity, q.Question)
			}
		}
		return tw.Flush()
	default:
		var sb strings.Builder
		for i, p := range r.Questions {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "## %s\n\n", p.Filename)
			if len(p.Questions) == 0 {
				sb.WriteString("_No questions matched the syllabus._\n")
				continue
			}
			for _, q := range p.Questions {
				fmt.Fprintf(&sb, "- %s _(%s%s)_\n", q.Question, q.Topic, similaritySuffix(q))
			}
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

// RenderHits writes search results for query.
func RenderHits(w io.Writer, query string, hits []SearchHit, f OutputFormat) error {
	switch f {
	case JSON:
		return writeJSON(w, hits)
	case Text:
		if len(hits) == 0 {
			_, err := fmt.Fprintf(w, "No questions match %q.\n", query)
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, h := range hits {
			fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\n", h.Score, h.Filename, h.Topic, h.Question)
		}
		return tw.Flush()
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "# Questions matching %q\n\n", query)
		if len(hits) == 0 {
			sb.WriteString("_No matches._\n")
		}
		for i, h := range hits {
			fmt.Fprintf(&sb, "%d. %s\n   _%s · %s · score %.2f_\n", i+1, h.Question, h.Topic, h.Filename, h.Score)
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

// RenderTopics writes a topic list.
func RenderTopics(w io.Writer, topics []string, f OutputFormat) error {
	switch f {
	case JSON:
		if topics == nil {
			topics = []string{}
		}
		return writeJSON(w, topics)
	case Text:
		_, err := io.WriteString(w, strings.Join(topics, "\n")+"\n")
		return err
	default:
		var sb strings.Builder
		sb.WriteString("# Syllabus topics\n\n")
		for _, t := range topics {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

func planMarkdown(w io.Writer, r *Report) error {
	var sb strings.Builder

	if r.Subject != "" {
		fmt.Fprintf(&sb, "# Study plan: %s\n\n", r.Subject)
	} else {
		sb.WriteString("# Study plan\n\n")
	}
	fmt.Fprintf(&sb, "_%s_\n\n", runLine(r))
	fmt.Fprintf(&sb, "**%d topics** · High priority: %d · Medium priority: %d · Low priority: %d\n\n",
		r.Summary.Topics, r.Summary.High, r.Summary.Medium, r.Summary.Low)

	sb.WriteString("## Papers\n\n")
	sb.WriteString("| Paper | Method | Questions | Retained |\n")
	sb.WriteString("|---|---|---:|---:|\n")
	for _, p := range r.Papers {
		method := p.Method
		if p.Skipped != "" {
			method = "skipped: " + p.Skipped
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %d |\n", cell(p.Filename), cell(method), p.Extracted, p.Retained)
	}

	sb.WriteString("\n## Topics\n\n")
	if len(r.Plan) == 0 {
		sb.WriteString("_No questions matched the syllabus._\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}
	sb.WriteString("| Rank | Topic | Questions | Weightage | Priority |\n")
	sb.WriteString("|---:|---|---:|---:|---|\n")
	for i, e := range r.Plan {
		fmt.Fprintf(&sb, "| %d | %s | %d | %.1f%% | %s |\n", i+1, cell(e.Topic), e.Count, e.Weightage, e.Priority)
	}

	sb.WriteString("\n## Example questions\n")
	for i, e := range r.Plan {
		fmt.Fprintf(&sb, "\n### %d. %s\n\n", i+1, e.Topic)
		for _, q := range e.ExampleQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func planText(w io.Writer, r *Report) error {
	title := "Study plan"
	if r.Subject != "" {
		title += ": " + r.Subject
	}
	fmt.Fprintf(w, "%s\n%s\n", title, runLine(r))
	fmt.Fprintf(w, "%d topics (high %d, medium %d, low %d)\n\n",
		r.Summary.Topics, r.Summary.High, r.Summary.Medium, r.Summary.Low)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTOPIC\tCOUNT\tWEIGHT\tPRIORITY")
	for i, e := range r.Plan {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\t%s\n", i+1, e.Topic, e.Count, e.Weightage, e.Priority)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for i, e := range r.Plan {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, e.Topic)
		for _, q := range e.ExampleQuestions {
			fmt.Fprintf(w, "   - %s\n", q)
		}
	}
	return nil
}

func runLine(r *Report) string {
	line := fmt.Sprintf("Generated %s · strategy %s", r.GeneratedAt.Format(time.RFC3339), r.Strategy)
	switch {
	case r.Clustered:
		line += " (topics clustered)"
	case len(r.Topics) > 0:
		line += fmt.Sprintf(", threshold %.2f", r.Threshold)
	default:
		line += ", no syllabus topics"
	}
	if r.Degraded {
		line += " · relevance filtering skipped for some papers"
	}
	return line + " · run " + r.RunID
}

func similaritySuffix(q relevance.Record) string {
	if q.Topic == relevance.Unknown {
		return ""
	}
	return fmt.Sprintf(", %.2f", q.Similarity)
}

// cell escapes table separators in a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
