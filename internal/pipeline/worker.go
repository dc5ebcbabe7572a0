package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/docpen/internal/metrics"
)

// Worker runs queued generation jobs one at a time.
type Worker struct {
	services Services
	met      *metrics.Metrics
	log      *slog.Logger
	timeout  time.Duration
}

func NewWorker(services Services, met *metrics.Metrics, log *slog.Logger, timeout time.Duration) *Worker {
	return &Worker{
		services: services,
		met:      met,
		log:      log,
		timeout:  timeout,
	}
}

// Process streams the job's generation into its document and records the
// outcome. Jobs cancelled while queued are skipped.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "action", string(job.Action), "model", job.Model)

	if job.GetStatus().Terminal() {
		log.Info("job finished before start", "status", job.GetStatus())
		return
	}

	svc, err := w.services.Get(job.Model)
	if err != nil {
		log.Error("no service for model", "error", err)
		job.session.Cancel()
		job.AddError(err.Error())
		job.SetStatus(StatusFailed)
		w.met.GenerationFinished(string(StatusFailed), 0)
		return
	}

	job.SetStatus(StatusStreaming)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	runErr := job.session.Run(ctx, svc, job.prompt, job.opts)
	elapsed := time.Since(start)

	status := jobStatus(job.session.Status())
	if runErr != nil {
		log.Warn("generation ended with error", "status", status, "error", runErr)
		job.AddError(runErr.Error())
	}
	job.SetStatus(status)
	w.met.GenerationFinished(string(status), elapsed)
	log.Info("generation finished", "status", status, "tokens", job.session.Tokens(), "duration", elapsed)
}
