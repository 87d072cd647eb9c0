package callback

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
)

const pageLayout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`

type pageData struct {
	Title   string
	Message string
}

type pages struct {
	confirmation *template.Template
	failure      *template.Template
}

func newPages() *pages {
	t := template.Must(template.New("page").Parse(pageLayout))
	return &pages{confirmation: t, failure: t}
}

// render returns the page shown to the browser once the callback resolved.
func (p *pages) render(o Outcome) ([]byte, error) {
	data := pageData{
		Title:   "You can now return to the application.",
		Message: "The login response was delivered. This window can be closed.",
	}
	if o.Kind == KindEmptyResponse {
		data = pageData{
			Title:   "Login response was empty.",
			Message: "Return to the application and try again.",
		}
	}
	var buf bytes.Buffer
	if err := p.confirmation.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render confirmation page: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *pages) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	var buf bytes.Buffer
	err := p.failure.Execute(&buf, pageData{
		Title:   http.StatusText(status),
		Message: message,
	})
	if err != nil {
		logging.FromRequest(r).WithError(err).Error("failed to render error page")
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", constants.ContentTypeHTML)
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.FromRequest(r).WithError(err).Error("failed to write response")
	}
}
