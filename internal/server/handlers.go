package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/runtime"
	"github.com/conneroisu/astral/internal/version"
)

const contentTypeHTML = "text/html; charset=utf-8"

// handlePage answers every non-internal path through the page loader.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := s.loader.Load(r.Context(), r.URL.RequestURI())
	switch res.StatusCode {
	case http.StatusOK:
		writeContents(w, http.StatusOK, res.ContentType, res.Contents)
	case http.StatusMovedPermanently, http.StatusFound:
		http.Redirect(w, r, res.Location, res.StatusCode)
	case http.StatusNotFound:
		s.notFound(w, r, res)
	default:
		s.serverError(w, r, res)
	}
}

// notFound serves the project's /404 page when it has one.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request, res runtime.LoadResult) {
	if r.URL.Path != "/404" {
		if page := s.loader.Load(r.Context(), "/404"); page.StatusCode == http.StatusOK {
			writeContents(w, http.StatusNotFound, page.ContentType, page.Contents)
			return
		}
	}
	s.renderError(w, r, newErrorView(http.StatusNotFound, "Not Found", nil, s.config.Root()))
}

// serverError serves a code frame for parse errors. Other failures use the
// project's /500 page when it has one, which receives the message as the
// error query parameter.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, res runtime.LoadResult) {
	err := res.Err
	if err == nil {
		err = errors.NewInternalError(errors.ErrCodeInternalError, "page failed", nil)
	}
	s.logger.Error(r.Context(), err, "Serving page", "path", r.URL.Path, "type", string(res.ErrorType))

	if res.ErrorType != errors.ErrorTypeParse && r.URL.Path != "/500" {
		q := url.Values{"error": {err.Error()}}
		if page := s.loader.Load(r.Context(), "/500?"+q.Encode()); page.StatusCode == http.StatusOK {
			writeContents(w, http.StatusInternalServerError, page.ContentType, page.Contents)
			return
		}
	}

	title := "Internal Error"
	if res.ErrorType == errors.ErrorTypeParse {
		title = "Parse Error"
	}
	s.renderError(w, r, newErrorView(http.StatusInternalServerError, title, err, s.config.Root()))
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, v errorView) {
	var buf bytes.Buffer
	if err := errorPage(v).Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "Rendering error page")
		http.Error(w, http.StatusText(v.Status), v.Status)
		return
	}
	writeContents(w, v.Status, contentTypeHTML, buf.Bytes())
}

func writeContents(w http.ResponseWriter, status int, contentType string, contents []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(contents)))
	w.WriteHeader(status)
	w.Write(contents)
}

// handleHealth returns the server health status for health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.serverMutex.RLock()
	started := s.started
	s.serverMutex.RUnlock()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Short(),
		"root":      s.config.Root(),
	}
	if !started.IsZero() {
		health["uptime"] = time.Since(started).Round(time.Second).String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode health response")
	}
}
