package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/export"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/importer"
	"github.com/dgallion1/docpen/internal/pipeline"
	"github.com/dgallion1/docpen/internal/prompt"
	"github.com/dgallion1/docpen/internal/transform"
)

// importUpload reads the multipart "file" field into a document. It writes
// the error response itself and reports false on failure.
func (s *Server) importUpload(w http.ResponseWriter, r *http.Request) (*doctree.Document, bool) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !importer.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	imp, err := importer.ForFile(filename, importer.Options{PdftotextFallback: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	doc, err := imp.Import(bytes.NewReader(data), filename)
	if err != nil {
		s.log.Warn("import failed", "filename", filename, "error", err)
		jsonError(w, "import failed: "+err.Error(), http.StatusUnprocessableEntity)
		return nil, false
	}
	s.log.Info("imported file", "filename", filename, "bytes", len(data), "blocks", len(doc.Blocks))
	return doc, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, doctree.ErrOutOfRange),
		errors.Is(err, doctree.ErrUnknownMark),
		errors.Is(err, doctree.ErrMarkValue),
		errors.Is(err, transform.ErrVoidBlock),
		errors.Is(err, transform.ErrInvalidKind),
		errors.Is(err, transform.ErrInvalidAlign),
		errors.Is(err, transform.ErrNotBoolean),
		errors.Is(err, editor.ErrPositionLost),
		errors.Is(err, editor.ErrStaleVersion),
		errors.Is(err, generate.ErrUnknownModel),
		errors.Is(err, prompt.ErrUnknownAction),
		errors.Is(err, prompt.ErrEmptyText),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, importer.ErrUnsupported):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
