// Package templates holds the server-rendered public pages.
package templates

import (
	"embed"
	"html/template"
	"time"
)

//go:embed *.tmpl
var files embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}

// Load parses every page; the result is handed to gin's SetHTMLTemplate.
func Load() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(files, "*.tmpl"))
}
