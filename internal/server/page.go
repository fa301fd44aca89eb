// ABOUTME: HTML page rendering of a shell frame using embedded templates.
// ABOUTME: Snippets and fixes are syntax highlighted; busy frames refresh themselves.

package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/views"
)

//go:embed templates/*.html
var templateFS embed.FS

// refreshSeconds is how often a busy page reloads itself
const refreshSeconds = 2

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"highlight": highlight,
	"pct": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"roleName": func(r rbac.Role) string {
		return r.String()
	},
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	shell.Frame
	Error   string
	Refresh int
}

func (s *Server) renderPage(w http.ResponseWriter, frame shell.Frame, status int, message string) {
	data := pageData{Frame: frame, Error: message}
	if frame.Busy {
		data.Refresh = refreshSeconds
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "page.html", data); err != nil {
		s.logger.WithError(err).WithField("view", frame.Session.View).Error("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// highlight renders code as inline-styled HTML, falling back to escaped text
func highlight(code string) template.HTML {
	if code == "" {
		return ""
	}
	out, err := views.Highlight(code, views.FormatHTML)
	if err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(code) + "</pre>")
	}
	return template.HTML(out)
}
