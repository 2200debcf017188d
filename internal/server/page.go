package server

import (
	"bytes"
	"html/template"
	"net/http"

	"StockScope/internal/render"
)

// pageData feeds the dashboard template.
type pageData struct {
	Title   string
	Form    formValues
	Error   string
	Report  *render.Report
	Body    string
	Chart   string
	PDFLink string
}

var pageTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"raw": func(s string) template.HTML { return template.HTML(s) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0 auto; max-width: 1100px; padding: 1rem 2rem; color: #212121; }
form { display: flex; gap: 1rem; align-items: flex-end; flex-wrap: wrap; margin-bottom: 1.5rem; }
label { display: flex; flex-direction: column; font-size: 0.85rem; }
input[type=text] { min-width: 320px; }
.error { background: #ffebee; color: #c62828; padding: 0.75rem 1rem; border-radius: 4px; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #e0e0e0; padding: 0.3rem 0.6rem; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.chart { margin: 1rem 0; }
.actions { margin: 1rem 0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<form method="get" action="/">
  <label>Tickers (comma separated)
    <input type="text" name="tickers" value="{{.Form.Tickers}}">
  </label>
  <label>Start
    <input type="date" name="start" value="{{.Form.Start}}">
  </label>
  <label>End
    <input type="date" name="end" value="{{.Form.End}}">
  </label>
  <input type="hidden" name="run" value="1">
  <button type="submit">Run</button>
</form>
{{with .Error}}<div class="error">{{.}}</div>{{end}}
{{if .Report}}
{{with .PDFLink}}<div class="actions"><a href="{{.}}">Download PDF</a></div>{{end}}
<div class="chart">{{raw .Chart}}</div>
<article>{{raw .Body}}</article>
{{end}}
</body>
</html>
`))

func (s *Server) writePage(w http.ResponseWriter, status int, page pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		s.log.Error().Err(err).Msg("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
