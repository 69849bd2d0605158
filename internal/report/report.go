// Package report turns a scenario result into Markdown, HTML and JSON
// documents and publishes them next to the run's other evidence.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"

	"github.com/kuitang/bringten-smoke/internal/artifacts"
	"github.com/kuitang/bringten-smoke/internal/scenario"
)

// Markdown renders a human readable summary of res.
func Markdown(res *scenario.Result) string {
	var b strings.Builder

	verdict := "PASSED"
	if !res.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", res.Scenario, verdict)
	fmt.Fprintf(&b, "- Run: `%s`\n", res.RunID)
	fmt.Fprintf(&b, "- Driver: %s\n", res.Driver)
	fmt.Fprintf(&b, "- Started: %s\n", res.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", res.Duration.Round(time.Millisecond))

	if failed := res.Failed(); failed != nil {
		fmt.Fprintf(&b, "**Step %d failed** (tab %d, %s): %s\n\n", failed.Index, failed.Tab, failed.Code, escapeCell(failed.Error))
	}

	b.WriteString("| # | Tab | Step | Status | Duration |\n")
	b.WriteString("|---|-----|------|--------|----------|\n")
	for _, sr := range res.Steps {
		tab := "-"
		if sr.Tab > 0 {
			tab = fmt.Sprint(sr.Tab)
		}
		dur := "-"
		if sr.Status != scenario.StatusSkipped {
			dur = sr.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", sr.Index, tab, escapeCell(sr.Name), sr.Status, dur)
	}

	if len(res.Artifacts) > 0 {
		b.WriteString("\n## Artifacts\n\n")
		names := lo.Keys(res.Artifacts)
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- [%s](%s)\n", name, res.Artifacts[name])
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .25rem .5rem; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`

var pageTmpl = template.Must(template.New("report").Parse(htmlTemplate))

// HTML renders the Markdown summary as a sanitized standalone page.
func HTML(res *scenario.Result) ([]byte, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	doc := parser.NewWithExtensions(extensions).Parse([]byte(Markdown(res)))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{
		Title:   fmt.Sprintf("%s %s", res.Scenario, res.RunID),
		Content: template.HTML(body),
	})
	if err != nil {
		return nil, fmt.Errorf("report: failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON encodes res with indentation.
func JSON(res *scenario.Result) ([]byte, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: failed to encode json: %w", err)
	}
	return data, nil
}

// Publish stores report.md, report.html and report.json for res and records
// their locations in res.Artifacts. The JSON document is written last so it
// lists the other two.
func Publish(ctx context.Context, store artifacts.Store, res *scenario.Result) error {
	if res.Artifacts == nil {
		res.Artifacts = map[string]string{}
	}
	page, err := HTML(res)
	if err != nil {
		return err
	}
	docs := []struct {
		name        string
		content     []byte
		contentType string
	}{
		{"report.md", []byte(Markdown(res)), "text/markdown; charset=utf-8"},
		{"report.html", page, "text/html; charset=utf-8"},
	}
	for _, d := range docs {
		loc, err := store.Put(ctx, artifacts.Key(res.RunID, d.name), d.content, d.contentType)
		if err != nil {
			return err
		}
		if loc != "" {
			res.Artifacts[d.name] = loc
		}
	}

	data, err := JSON(res)
	if err != nil {
		return err
	}
	if _, err := store.Put(ctx, artifacts.Key(res.RunID, "report.json"), data, "application/json"); err != nil {
		return err
	}
	return nil
}
