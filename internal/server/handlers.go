package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"cloudnest/pkg/models"
)

var indexTemplate = template.Must(template.New("index").Parse(`
    <h1>{{.Title}}</h1>
    <p>Server Hostname: {{.Hostname}}</p>
    <p>Environment: {{.Environment}}</p>
  `))

// healthBody is encoded once; the health response never changes.
var healthBody = mustMarshal(models.HealthResponse{Status: models.HealthOK})

// indexHandler renders the greeting page with the current host name
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if !isRead(r) {
		http.NotFound(w, r)
		return
	}

	page := models.IndexPage{
		Title:       s.title,
		Hostname:    s.hostname(),
		Environment: s.environment,
	}

	var buf bytes.Buffer
	if err := s.indexTmpl.Execute(&buf, page); err != nil {
		s.logger.Error("Failed to render index page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	s.logger.Debug("Index page served", "method", r.Method, "path", r.URL.Path, "hostname", page.Hostname)
}

// healthHandler reports liveness
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !isRead(r) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(healthBody)

	s.logger.Debug("Health endpoint accessed", "method", r.Method, "path", r.URL.Path)
}

// normalizePath matches routes case-insensitively and ignores one trailing
// slash, so /HEALTH and /health/ reach the same handler as /health.
func normalizePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.ToLower(r.URL.Path)
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		if path == r.URL.Path {
			next.ServeHTTP(w, r)
			return
		}

		r2 := new(http.Request)
		*r2 = *r
		u := *r.URL
		u.Path = path
		u.RawPath = ""
		r2.URL = &u
		next.ServeHTTP(w, r2)
	})
}

// isRead reports whether r is a GET or HEAD request.
func isRead(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
