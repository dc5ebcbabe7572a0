package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/prompt"
	"github.com/dgallion1/docpen/internal/stream"
)

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusStreaming  JobStatus = "streaming"
	StatusCompleted  JobStatus = "completed"
	StatusCancelled  JobStatus = "cancelled"
	StatusAnchorLost JobStatus = "anchor_lost"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change any more.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusAnchorLost, StatusFailed:
		return true
	}
	return false
}

// Job tracks one streamed generation into a document.
type Job struct {
	mu sync.Mutex

	ID     string        `json:"job_id"`
	DocID  string        `json:"doc_id"`
	Action prompt.Action `json:"action"`
	Model  string        `json:"model"`

	Status JobStatus `json:"status"`
	Mode   string    `json:"mode"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	session *stream.Session
	prompt  string
	opts    generate.Options
	errors  []string
}

// Progress reports what a job has committed so far.
type Progress struct {
	Tokens         int      `json:"tokens"`
	CommittedChars int      `json:"committed_chars"`
	Errors         []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// ForDoc returns the jobs that target a document.
func (s *JobStore) ForDoc(docID string) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Job
	for _, job := range s.jobs {
		if job.DocID == docID {
			out = append(out, job)
		}
	}
	return out
}

// Cleanup removes finished jobs whose last update is older than the TTL.
// Running jobs are kept however old they are.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current status.
func (j *Job) GetStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// Prompt returns the prompt built when the job was submitted.
func (j *Job) Prompt() string {
	return j.prompt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string        `json:"job_id"`
	DocID     string        `json:"doc_id"`
	Action    prompt.Action `json:"action"`
	Model     string        `json:"model"`
	Status    JobStatus     `json:"status"`
	Mode      string        `json:"mode"`
	Progress  Progress      `json:"progress"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	snap := JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Action:    j.Action,
		Model:     j.Model,
		Status:    j.Status,
		Mode:      j.Mode,
		Progress:  Progress{Errors: errs},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.session != nil {
		snap.Text = j.session.Text()
		snap.Progress.Tokens = j.session.Tokens()
		snap.Progress.CommittedChars = len([]rune(snap.Text))
	}
	return snap
}

// jobStatus maps a finished session to a job status.
func jobStatus(s stream.Status) JobStatus {
	switch s {
	case stream.StatusCompleted:
		return StatusCompleted
	case stream.StatusCancelled:
		return StatusCancelled
	case stream.StatusAnchorLost:
		return StatusAnchorLost
	case stream.StatusPending, stream.StatusStreaming:
		return StatusStreaming
	}
	return StatusFailed
}
