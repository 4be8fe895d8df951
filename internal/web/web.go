// Package web holds the templates of the browser shell.
package web

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"pages": func(pages []int) string {
		parts := make([]string, len(pages))
		for i, p := range pages {
			parts[i] = strconv.Itoa(p)
		}
		return strings.Join(parts, ", ")
	},
	"percent": func(score float64) string {
		return strconv.FormatFloat(score*100, 'f', 1, 64) + "%"
	},
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
