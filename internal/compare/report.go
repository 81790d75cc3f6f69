package compare

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RenderText writes the console summary block printed at the end of a compare
// run.
func RenderText(w io.Writer, r *AgreementReport) {
	fmt.Fprintln(w, "Agreement summary")
	fmt.Fprintln(w, "=================")
	if r.Model != "" {
		fmt.Fprintf(w, "Judge model:       %s\n", r.Model)
	}
	fmt.Fprintf(w, "Compared commits:  %d\n", r.Compared)
	fmt.Fprintf(w, "Agreements:        %d (%.1f%%)\n", r.Agreements, r.Rate()*100)
	fmt.Fprintf(w, "Disagreements:     %d\n", r.Compared-r.Agreements)
	fmt.Fprintf(w, "Only in reference: %d\n", len(r.OnlyReference))
	fmt.Fprintf(w, "Only judged:       %d\n", len(r.OnlyJudge))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Confusion (rows: reference, columns: judge)")
	fmt.Fprintf(w, "%10s %8s %8s %8s\n", "", "pure", "floss", "unknown")
	for i, label := range VerdictLabels {
		fmt.Fprintf(w, "%10s %8d %8d %8d\n", label, r.Confusion[i][0], r.Confusion[i][1], r.Confusion[i][2])
	}
}

// RenderMarkdown produces the GFM report rendered by the dashboard and
// written under the reports directory.
func RenderMarkdown(r *AgreementReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Agreement report: %s\n\n", modelLabel(r.Model))
	fmt.Fprintf(&b, "Generated %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04 UTC"))

	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Compared commits | %d |\n", r.Compared)
	fmt.Fprintf(&b, "| Agreements | %d |\n", r.Agreements)
	fmt.Fprintf(&b, "| Agreement rate | %.1f%% |\n", r.Rate()*100)
	fmt.Fprintf(&b, "| Only in reference | %d |\n", len(r.OnlyReference))
	fmt.Fprintf(&b, "| Only judged | %d |\n\n", len(r.OnlyJudge))

	b.WriteString("## Confusion matrix\n\n")
	b.WriteString("Rows are the reference verdict, columns the judge verdict.\n\n")
	b.WriteString("| | pure | floss | unknown |\n|---|---|---|---|\n")
	for i, label := range VerdictLabels {
		fmt.Fprintf(&b, "| **%s** | %d | %d | %d |\n", label, r.Confusion[i][0], r.Confusion[i][1], r.Confusion[i][2])
	}
	b.WriteString("\n")

	if disagreements := r.Disagreements(); len(disagreements) > 0 {
		b.WriteString("## Disagreements\n\n")
		b.WriteString("| Commit | Reference | Judge | Notes |\n|---|---|---|---|\n")
		for _, p := range disagreements {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", shortHash(p.Hash), p.Reference, p.Judge, pairNotes(p))
		}
		b.WriteString("\n")
	}

	if len(r.OnlyReference) > 0 {
		fmt.Fprintf(&b, "## Uncompared (reference only): %d\n\n", len(r.OnlyReference))
		writeHashList(&b, r.OnlyReference)
	}
	if len(r.OnlyJudge) > 0 {
		fmt.Fprintf(&b, "## Uncompared (judge only): %d\n\n", len(r.OnlyJudge))
		writeHashList(&b, r.OnlyJudge)
	}

	return b.String()
}

// WriteMarkdown renders the report and writes it to
// <dir>/agreement_<model-slug>.md, returning the written path.
func WriteMarkdown(dir, modelSlug string, r *AgreementReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}
	path := filepath.Join(dir, "agreement_"+modelSlug+".md")
	if err := os.WriteFile(path, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// WriteJSON writes the machine-readable report next to the markdown one.
func WriteJSON(dir, modelSlug string, r *AgreementReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling report: %w", err)
	}
	path := filepath.Join(dir, "agreement_"+modelSlug+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

func pairNotes(p Pair) string {
	var notes []string
	if p.RefConflict {
		notes = append(notes, "reference conflict")
	}
	if p.JudgeSynthetic {
		notes = append(notes, "judge fields synthesized")
	}
	return strings.Join(notes, ", ")
}

func writeHashList(b *strings.Builder, hashes []string) {
	const maxListed = 50
	for i, h := range hashes {
		if i == maxListed {
			fmt.Fprintf(b, "- and %d more\n", len(hashes)-maxListed)
			break
		}
		fmt.Fprintf(b, "- `%s`\n", shortHash(h))
	}
	b.WriteString("\n")
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

func modelLabel(s string) string {
	if s == "" {
		return "unknown model"
	}
	return s
}
