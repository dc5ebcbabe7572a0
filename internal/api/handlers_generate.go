package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docpen/internal/chunker"
	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/pipeline"
	"github.com/dgallion1/docpen/internal/prompt"
)

type generateRequest struct {
	Action  prompt.Action      `json:"action"`
	Options prompt.Options     `json:"options"`
	Model   string             `json:"model"`
	Params  generate.Options   `json:"params"`
	Range   *doctree.Selection `json:"range,omitempty"`
}

// handleGenerate queues a streamed generation into the document.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Action == "" {
		req.Action = prompt.ActionContinue
	}

	job, err := s.orchestrator.Submit(ed, pipeline.Request{
		Action:  req.Action,
		Options: req.Options,
		Model:   req.Model,
		Params:  req.Params,
		Range:   req.Range,
	})
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"mode":     snap.Mode,
		"model":    snap.Model,
		"poll_url": fmt.Sprintf("/api/generations/%s/status", snap.ID),
	})
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleCancelGeneration stops a job. Committed text stays in the document.
func (s *Server) handleCancelGeneration(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.Cancel(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.orchestrator.GetJob(jobID).Snapshot())
}

type assistRequest struct {
	Action  prompt.Action    `json:"action"`
	Text    string           `json:"text"`
	Options prompt.Options   `json:"options"`
	Model   string           `json:"model"`
	Params  generate.Options `json:"params"`
}

// handleAssist runs one action over free text and returns the whole answer.
// Nothing is written to any document.
func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var req assistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	built, err := prompt.Build(prompt.Request{
		Action:  req.Action,
		Text:    req.Text,
		Window:  chunker.Window{Previous: chunker.Tail(req.Text, s.cfg.MaxContextTokens)},
		Options: req.Options,
	})
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	svc, err := s.models.Get(req.Model)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerationTimeout)
	defer cancel()
	resp, err := svc.GenerateText(ctx, built, req.Params)
	if err != nil {
		s.log.Warn("assist failed", "action", req.Action, "model", req.Model, "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  s.models.Models(),
		"default": s.models.Default(),
		"actions": prompt.Actions,
	})
}
