// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"html/template"
	"io"

	"github.com/North-Shore-AI/crucible-trace/trace"
)

// htmlPage is the standalone document template. html/template escaping
// covers event text, which is model-generated and untrusted.
var htmlPage = template.Must(template.New("chain").Funcs(template.FuncMap{
	"pct": func(c float64) int { return int(c * 100) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; color: #1a1a1a; }
.event { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; margin: 1rem 0; }
.event h3 { margin-top: 0; }
.type { color: #666; font-size: 0.85rem; text-transform: uppercase; }
.bar { background: #eee; border-radius: 3px; height: 0.5rem; }
.bar span { display: block; background: #3a7; border-radius: 3px; height: 100%; }
.refs { color: #888; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p class="refs">Chain {{.ID}} · {{len .Events}} events · created {{.CreatedAt.UTC.Format "2006-01-02 15:04:05"}} UTC</p>
{{range .Events}}
<div class="event">
  <span class="type">{{.Type}}</span>
  <h3>{{.Decision}}</h3>
  <p>{{.Reasoning}}</p>
  {{if .Alternatives}}<p>Alternatives: {{range $i, $a := .Alternatives}}{{if $i}}; {{end}}{{$a}}{{end}}</p>{{end}}
  <div class="bar" title="confidence {{printf "%.2f" .Confidence}}"><span style="width: {{pct .Confidence}}%"></span></div>
  {{if or .ParentID .DependsOn}}<p class="refs">
    {{if .ParentID}}parent: {{.ParentID}}{{end}}
    {{if .DependsOn}}depends on: {{range $i, $d := .DependsOn}}{{if $i}}, {{end}}{{$d}}{{end}}{{end}}
  </p>{{end}}
</div>
{{end}}
</body>
</html>
`))

// HTML writes a standalone HTML document for the chain.
func HTML(w io.Writer, chain trace.Chain) error {
	return htmlPage.Execute(w, chain)
}
