// Package site serves the HTML page, the public assets and a JSON API over
// the document store.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

// MaxDocumentBytes caps request bodies for create and update.
const MaxDocumentBytes = 1 << 20

const shutdownTimeout = 5 * time.Second

var errInvalidJSON = errors.New("request body is not valid JSON")

// Server routes HTTP requests to the store.
type Server struct {
	store *docstore.Store
	log   zerolog.Logger
	page  Page
	mux   *http.ServeMux
}

// NewServer returns the site handler. page is rendered at "/".
func NewServer(store *docstore.Store, logger zerolog.Logger, page Page) *Server {
	s := &Server{
		store: store,
		log:   logger,
		page:  page,
		mux:   http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /static/{path...}", s.handleStatic)
	s.mux.HandleFunc("GET /api/{namespace}", s.handleList)
	s.mux.HandleFunc("GET /api/{namespace}/{key}", s.handleRead)
	s.mux.HandleFunc("POST /api/{namespace}/{key}", s.handleCreate)
	s.mux.HandleFunc("PUT /api/{namespace}/{key}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/{namespace}/{key}", s.handleDelete)

	return s
}

// ServeHTTP logs every request after the routed handler ran.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rec, r)

	s.log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer

	err := s.page.Render(&buf)
	if err != nil {
		s.log.Error().Err(err).Msg("render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	contentType := mime.TypeByExtension(path.Ext(rel))

	var (
		body   []byte
		result *docstore.Error
	)

	if isText(contentType) {
		res := s.store.ReadPublic(rel)
		body, result = []byte(res.Value), res.Err
	} else {
		res := s.store.ReadBinaryPublic(rel)
		body, result = res.Value, res.Err

		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	if result != nil {
		s.writeStoreError(w, result)

		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res := s.store.List(r.PathValue("namespace"))
	if res.Failed() {
		s.writeStoreError(w, res.Err)

		return
	}

	writeJSON(w, http.StatusOK, res.Value)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	res := s.store.Read(r.PathValue("namespace"), r.PathValue("key"))
	if res.Failed() {
		s.writeStoreError(w, res.Err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, res.Value)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	res := s.store.Create(r.PathValue("namespace"), r.PathValue("key"), doc)
	if res.Failed() {
		s.writeStoreError(w, res.Err)

		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": res.Value})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	res := s.store.Update(r.PathValue("namespace"), r.PathValue("key"), doc)
	if res.Failed() {
		s.writeStoreError(w, res.Err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": res.Value})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res := s.store.Delete(r.PathValue("namespace"), r.PathValue("key"))
	if res.Failed() {
		s.writeStoreError(w, res.Err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readDocument reads and validates the request body. On failure it has
// already written the response.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error(), Kind: "too_large"})

			return nil, false
		}

		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})

		return nil, false
	}

	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errInvalidJSON.Error(), Kind: docstore.KindSerialization.String()})

		return nil, false
	}

	return json.RawMessage(body), true
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeStoreError maps the failure kind to a status. The body names the kind
// and operation only; causes carry file system paths and stay in the log.
func (s *Server) writeStoreError(w http.ResponseWriter, err *docstore.Error) {
	status := StatusFor(err.Kind)
	msg := err.Summary()

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("store failure")

		msg = "internal storage error"
	}

	writeJSON(w, status, errorBody{Error: msg, Kind: err.Kind.String()})
}

// StatusFor maps a store failure kind to an HTTP status code.
func StatusFor(kind docstore.Kind) int {
	switch kind {
	case docstore.KindInvalidPath:
		return http.StatusBadRequest
	case docstore.KindNotFound:
		return http.StatusNotFound
	case docstore.KindConflict:
		return http.StatusConflict
	case docstore.KindSerialization:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isText(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")

	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/javascript", mediaType == "application/json", mediaType == "image/svg+xml":
		return true
	default:
		return false
	}
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Serve listens on addr and serves handler until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return ServeListener(ctx, ln, handler, logger)
}

// ServeListener serves handler on ln until ctx is cancelled, then shuts
// down gracefully. It closes ln.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")

	return nil
}
