package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/export"
	"github.com/dgallion1/docpen/internal/transform"
)

// documentView is the JSON form of an open document.
type documentView struct {
	DocID    string            `json:"doc_id"`
	Version  uint64            `json:"version"`
	CanUndo  bool              `json:"can_undo"`
	CanRedo  bool              `json:"can_redo"`
	Document *doctree.Document `json:"document"`
}

func viewOf(ed *editor.Editor) documentView {
	doc := ed.Snapshot()
	return documentView{
		DocID:    ed.ID(),
		Version:  ed.Version(),
		CanUndo:  ed.CanUndo(),
		CanRedo:  ed.CanRedo(),
		Document: doc,
	}
}

// editorFor resolves the {docID} parameter, writing a 404 when it is unknown.
func (s *Server) editorFor(w http.ResponseWriter, r *http.Request) *editor.Editor {
	ed := s.docs.Get(chi.URLParam(r, "docID"))
	if ed == nil {
		jsonError(w, "document not found", http.StatusNotFound)
	}
	return ed
}

// handleCreateDocument opens a document from JSON blocks or an uploaded file.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc *doctree.Document
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var ok bool
		if doc, ok = s.importUpload(w, r); !ok {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		var req struct {
			Blocks []doctree.Block `json:"blocks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		// IDs are assigned by the document. Unknown kinds are kept as text
		// blocks.
		for i := range req.Blocks {
			req.Blocks[i].ID = 0
		}
		doc = doctree.FromBlocks(req.Blocks)
	}

	ed := s.docs.Create(doc)
	s.log.Info("document opened", "doc_id", ed.ID(), "blocks", len(doc.Blocks))
	writeJSON(w, http.StatusCreated, viewOf(ed))
}

// handleListDocuments lists all open documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := []map[string]any{}
	for _, id := range s.docs.IDs() {
		ed := s.docs.Get(id)
		if ed == nil {
			continue
		}
		doc := ed.Snapshot()
		docs = append(docs, map[string]any{
			"doc_id":  id,
			"version": ed.Version(),
			"blocks":  len(doc.Blocks),
			"chars":   len([]rune(doc.Text())),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ed))
}

// handleDeleteDocument closes a document and cancels its generations.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if s.docs.Get(docID) == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	cancelled := s.orchestrator.CancelDoc(docID)
	s.docs.Delete(docID)
	s.log.Info("document closed", "doc_id", docID, "cancelled_jobs", cancelled)
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":        true,
		"cancelled_jobs": cancelled,
	})
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	var sel doctree.Selection
	if err := decodeJSON(w, r, &sel); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := ed.Select(sel); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ed))
}

// commandRequest is the wire form of every editor command. Fields a command
// does not use are ignored.
type commandRequest struct {
	Command string             `json:"command"`
	Range   *doctree.Selection `json:"range,omitempty"`
	Text    string             `json:"text,omitempty"`
	Marks   *doctree.Marks     `json:"marks,omitempty"`
	Mark    doctree.MarkName   `json:"mark,omitempty"`
	Value   any                `json:"value,omitempty"`
	Kind    doctree.Kind       `json:"kind,omitempty"`
	Align   doctree.Align      `json:"align,omitempty"`
	Image   *doctree.Image     `json:"image,omitempty"`
}

var errUnknownCommand = errors.New("unknown command")

func (c commandRequest) command() (transform.Command, error) {
	switch c.Command {
	case "insert_text":
		return transform.InsertText{Range: c.Range, Text: c.Text, Marks: c.Marks}, nil
	case "delete_range":
		return transform.DeleteRange{Range: c.Range}, nil
	case "set_mark":
		return transform.SetMark{Range: c.Range, Mark: c.Mark, Value: c.Value}, nil
	case "toggle_mark":
		return transform.ToggleMark{Range: c.Range, Mark: c.Mark}, nil
	case "set_block_type":
		return transform.SetBlockType{Range: c.Range, Kind: c.Kind}, nil
	case "set_alignment":
		return transform.SetAlignment{Range: c.Range, Align: c.Align}, nil
	case "toggle_alignment":
		return transform.ToggleAlignment{Range: c.Range, Align: c.Align}, nil
	case "split_block":
		return transform.SplitBlock{Range: c.Range}, nil
	case "insert_image":
		if c.Image == nil {
			return nil, fmt.Errorf("insert_image: image is required")
		}
		return transform.InsertImage{Range: c.Range, Image: *c.Image}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCommand, c.Command)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	var req commandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := req.command()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := ed.Apply(cmd)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":   ed.ID(),
		"version":  ed.Version(),
		"cursor":   res.Cursor,
		"document": res.Doc,
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.stepHistory(w, r, (*editor.Editor).Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.stepHistory(w, r, (*editor.Editor).Redo)
}

func (s *Server) stepHistory(w http.ResponseWriter, r *http.Request, step func(*editor.Editor) bool) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	applied := step(ed)
	writeJSON(w, http.StatusOK, map[string]any{
		"applied":  applied,
		"document": viewOf(ed),
	})
}

// handleExport serializes the current document in the requested format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	ex, err := export.For(export.Format(r.URL.Query().Get("format")))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	blob, err := ex.Export(ed.Snapshot())
	s.met.ExportObserved(string(ex.Format()), time.Since(start))
	if err != nil {
		s.log.Error("export failed", "doc_id", ed.ID(), "format", ex.Format(), "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Name))
	w.Header().Set("Content-Length", fmt.Sprint(len(blob.Data)))
	w.Write(blob.Data)
}
