package callback

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
)

const maxBodySize = 1 << 20

// ServeHTTP implements http.Handler.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sr := &statusRecorder{ResponseWriter: w}
	defer func() {
		l.metrics.requests.
			WithLabelValues(r.Method, strconv.Itoa(sr.getStatusCode())).
			Inc()
	}()

	r = logging.IntoRequest(r, l.logger.WithField("http", logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}))

	defer func() {
		if v := recover(); v != nil {
			logging.FromRequest(r).WithField("panic", v).Error("callback handler panicked")
			if !sr.wroteHeader() {
				l.pages.respondError(sr, r, http.StatusBadRequest, "Invalid request.")
			}
		}
	}()

	l.handle(sr, r)
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	log := logging.FromRequest(r)

	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}

	if l.pending.resolved() {
		log.Debug("callback already resolved, ignoring request")
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload string
	switch r.Method {
	case http.MethodGet:
		if q := r.URL.RawQuery; q != "" {
			payload = "?" + q
		}

	case http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		if !isFormContentType(contentType) {
			log.WithField("contentType", contentType).Warn("unsupported content type")
			l.pages.respondError(w, r, http.StatusUnsupportedMediaType,
				"The login response must be sent as "+constants.ContentTypeForm+".")
			return
		}
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			log.WithError(err).Error("failed to read request body")
			l.pages.respondError(w, r, http.StatusBadRequest, "Failed to read the login response.")
			return
		}
		payload = string(b)

	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPost}, ", "))
		l.pages.respondError(w, r, http.StatusMethodNotAllowed, "Invalid request.")
		return
	}

	outcome := classify(payload)

	page, err := l.pages.render(outcome)
	if err != nil {
		log.WithError(err).Error("failed to render confirmation page")
		l.pages.respondError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}

	if !l.resolve(outcome) {
		log.Debug("callback already resolved, ignoring request")
		w.WriteHeader(http.StatusOK)
		return
	}
	log.WithField("outcome", outcome.Kind.String()).Info("callback received")

	w.Header().Set("Content-Type", constants.ContentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func isFormContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, constants.ContentTypeForm)
}
