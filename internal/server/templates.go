package server

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders GFM agreement reports into dashboard pages.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>refjudge results</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 900px; color: #1f2328; }
h1 { font-size: 1.4rem; }
.cards { display: flex; gap: 1rem; flex-wrap: wrap; margin: 1.5rem 0; }
.card { border: 1px solid #d0d7de; border-radius: 8px; padding: 1rem 1.5rem; min-width: 160px; }
.card .value { font-size: 1.8rem; font-weight: 600; }
.card .label { color: #57606a; font-size: 0.85rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.8rem; text-align: left; font-size: 0.9rem; }
th { background: #f6f8fa; }
.live { color: #1a7f37; font-size: 0.8rem; }
a { color: #0969da; }
</style>
</head>
<body>
<h1>refjudge results <span class="live" id="live"></span></h1>
<p>Judge model: <strong>{{.Model}}</strong> &middot; <a href="/reports">reports</a> &middot; <a href="/api/agreement">agreement JSON</a></p>
<div class="cards">
  <div class="card"><div class="value" id="compared">-</div><div class="label">compared commits</div></div>
  <div class="card"><div class="value" id="rate">-</div><div class="label">agreement rate</div></div>
  <div class="card"><div class="value" id="synth">-</div><div class="label">synthesized verdicts</div></div>
  <div class="card"><div class="value" id="failures">-</div><div class="label">recorded failures</div></div>
</div>
<table>
<thead><tr><th>Verdict</th><th>Judge</th><th>Reference</th></tr></thead>
<tbody>
<tr><td>pure</td><td id="j-pure">-</td><td id="r-pure">-</td></tr>
<tr><td>floss</td><td id="j-floss">-</td><td id="r-floss">-</td></tr>
<tr><td>unknown</td><td id="j-unknown">-</td><td id="r-unknown">-</td></tr>
</tbody>
</table>
<script>
function render(s) {
  const pct = s.compared ? (s.agreement_rate * 100).toFixed(1) + "%" : "n/a";
  document.getElementById("compared").textContent = s.compared;
  document.getElementById("rate").textContent = pct;
  document.getElementById("synth").textContent = s.synthesized;
  document.getElementById("failures").textContent = s.failures;
  for (const v of ["pure", "floss", "unknown"]) {
    document.getElementById("j-" + v).textContent = (s.judge || {})[v] || 0;
    document.getElementById("r-" + v).textContent = (s.reference || {})[v] || 0;
  }
}
fetch("/api/stats").then(r => r.json()).then(render);
try {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/live");
  ws.onmessage = e => { render(JSON.parse(e.data)); };
  ws.onopen = () => { document.getElementById("live").textContent = "(live)"; };
} catch (e) {}
</script>
</body>
</html>`

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 900px; color: #1f2328; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.8rem; }
th { background: #f6f8fa; }
code { background: #f6f8fa; padding: 0.1rem 0.3rem; border-radius: 4px; }
a { color: #0969da; }
</style>
</head>
<body>
<p><a href="/">&larr; dashboard</a></p>
{{.Body}}
</body>
</html>`

var (
	indexTmpl  = template.Must(template.New("index").Parse(indexHTML))
	reportTmpl = template.Must(template.New("report").Parse(reportHTML))
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, map[string]string{"Model": s.store.Model()})
}

// handleReportList renders links to every generated report file.
func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.ReportsDir)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Reports\n\n")
	if len(names) == 0 {
		b.WriteString("No reports generated yet. Run `refjudge compare` first.\n")
	}
	for _, name := range names {
		b.WriteString("- [" + name + "](/reports/" + name + ")\n")
	}

	s.renderMarkdownPage(w, "Reports", b.String())
}

// handleReport renders one stored markdown report as HTML.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// The report directory is flat; reject anything path-like.
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid report name")
		return
	}

	content, err := os.ReadFile(filepath.Join(s.cfg.ReportsDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.renderMarkdownPage(w, name, string(content))
}

func (s *Server) renderMarkdownPage(w http.ResponseWriter, title, md string) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = reportTmpl.Execute(w, map[string]any{
		"Title": title,
		"Body":  template.HTML(body.String()),
	})
}
