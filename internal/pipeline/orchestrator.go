package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/dgallion1/docpen/internal/chunker"
	"github.com/dgallion1/docpen/internal/config"
	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/prompt"
	"github.com/dgallion1/docpen/internal/stream"
	"github.com/dgallion1/docpen/internal/transform"
)

var (
	// ErrQueueFull indicates that the job queue has no free slot.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped indicates a submit after Stop.
	ErrStopped = errors.New("pipeline stopped")
)

// Services resolves a model name to the service that generates for it.
type Services interface {
	Get(model string) (generate.Service, error)
	Default() string
}

// Request describes one generation into a document.
type Request struct {
	Action  prompt.Action
	Options prompt.Options
	Model   string
	Params  generate.Options
	// Range overrides the editor's current selection when non-nil.
	Range *doctree.Selection
}

// Orchestrator queues generation jobs and runs them on a worker pool.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	services Services
	met      *metrics.Metrics
	log      *slog.Logger
	cfg      config.Config
	chunkCfg chunker.Config

	mu      sync.RWMutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, services Services, met *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		services: services,
		met:      met,
		log:      log,
		cfg:      cfg,
		chunkCfg: chunker.Config{MaxTokens: cfg.MaxContextTokens},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.services, o.met, o.log, o.cfg.GenerationTimeout)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running sessions and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit captures the anchor in ed, builds the prompt from the document as
// it is now and queues the job. Actions that do not replace their text
// insert after the selection.
func (o *Orchestrator) Submit(ed *editor.Editor, req Request) (*Job, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", prompt.ErrUnknownAction, req.Action)
	}
	if _, err := o.services.Get(req.Model); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = o.services.Default()
	}

	id := uuid.Must(uuid.NewV4()).String()
	var (
		built   string
		session *stream.Session
	)
	// The prompt and the anchor must come from the same version.
	err := ed.Update(func(tx *editor.Tx) error {
		doc := tx.Doc()
		sel := doc.Selection
		if req.Range != nil {
			sel = *req.Range
		}
		text, err := doc.StringAt(sel)
		if err != nil {
			return err
		}
		anchor := sel
		if !req.Action.Replaces() {
			_, end := sel.Edges()
			anchor = doctree.Collapse(end)
		}
		pos, err := doc.PositionOf(anchor.Focus)
		if err != nil {
			return err
		}
		if anchor.Collapsed() && doc.Blocks[pos.Block].Kind.IsVoid() {
			return fmt.Errorf("%s: %w", req.Action, transform.ErrVoidBlock)
		}

		built, err = prompt.Build(prompt.Request{
			Action:  req.Action,
			Text:    text,
			Window:  chunker.Around(doc, pos, o.chunkCfg),
			Options: req.Options,
		})
		if err != nil {
			return err
		}

		session, err = stream.NewInTx(tx, anchor,
			stream.WithLogger(o.log.With("job_id", id)),
			stream.WithMetrics(o.met),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	params := req.Params
	params.Model = model
	job := &Job{
		ID:        id,
		DocID:     ed.ID(),
		Action:    req.Action,
		Model:     model,
		Status:    StatusQueued,
		Mode:      string(session.Mode()),
		CreatedAt: now,
		UpdatedAt: now,
		session:   session,
		prompt:    built,
		opts:      params,
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return nil, ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return job, nil
	default:
		session.Cancel()
		job.AddError("queue full")
		job.SetStatus(StatusFailed)
		return nil, fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// Cancel stops a job. Text it already committed stays in the document. It
// reports whether the job exists.
func (o *Orchestrator) Cancel(id string) bool {
	job := o.jobs.Get(id)
	if job == nil {
		return false
	}
	o.cancelJob(job)
	return true
}

// CancelDoc cancels every unfinished job of a document and returns how many
// were cancelled.
func (o *Orchestrator) CancelDoc(docID string) int {
	n := 0
	for _, job := range o.jobs.ForDoc(docID) {
		if !job.GetStatus().Terminal() {
			o.cancelJob(job)
			n++
		}
	}
	return n
}

func (o *Orchestrator) cancelJob(job *Job) {
	job.session.Cancel()
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Status == StatusQueued {
		job.Status = StatusCancelled
		job.UpdatedAt = time.Now()
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
