package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpen/internal/config"
	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/generate/generatetest"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/prompt"
	"github.com/dgallion1/docpen/internal/transform"
)

func testConfig() config.Config {
	return config.Config{
		WorkerCount:       1,
		MaxQueueSize:      4,
		MaxContextTokens:  500,
		GenerationTimeout: time.Minute,
		JobTTL:            time.Hour,
	}
}

func newOrchestrator(t *testing.T, cfg config.Config, svc generate.Service) *Orchestrator {
	t.Helper()
	reg := generate.NewRegistry(2, nil)
	reg.Register("test-model", svc)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(cfg, reg, metrics.New(), log)
	t.Cleanup(o.Stop)
	return o
}

func newEditor(texts ...string) *editor.Editor {
	blocks := make([]doctree.Block, len(texts))
	for i, s := range texts {
		blocks[i] = doctree.NewBlock(doctree.KindParagraph, s)
	}
	return editor.New("doc-1", doctree.FromBlocks(blocks))
}

func span(block, from, to int) *doctree.Selection {
	return &doctree.Selection{
		Anchor: doctree.Point{Block: block, Offset: from},
		Focus:  doctree.Point{Block: block, Offset: to},
	}
}

func waitJob(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	require.Eventually(t, func() bool { return job.GetStatus().Terminal() }, 2*time.Second, 5*time.Millisecond)
	return job.Snapshot()
}

func TestOrchestrator_ContinueInsertsAtCursor(t *testing.T) {
	svc := &generatetest.Scripted{Tokens: []string{" and", " more"}}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	ed := newEditor("Intro paragraph.", "Body")
	job, err := o.Submit(ed, Request{Action: prompt.ActionContinue, Range: span(1, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, "test-model", job.Model)
	assert.Equal(t, "insert_after", job.Mode)

	snap := waitJob(t, job)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Progress.Tokens)
	assert.Equal(t, " and more", snap.Text)
	assert.Equal(t, 9, snap.Progress.CommittedChars)
	assert.Equal(t, "Body and more", ed.Snapshot().Blocks[1].Text())

	prompts := svc.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Intro paragraph.")
	assert.Contains(t, prompts[0], "Body")
	assert.Equal(t, "test-model", svc.LastOptions().Model)
}

func TestOrchestrator_ProofreadReplacesSelection(t *testing.T) {
	svc := &generatetest.Scripted{Tokens: []string{"d", "og"}}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	ed := newEditor("The cat sat")
	job, err := o.Submit(ed, Request{Action: prompt.ActionProofread, Range: span(0, 4, 7)})
	require.NoError(t, err)
	assert.Equal(t, "replace", job.Mode)

	snap := waitJob(t, job)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "The dog sat", ed.Snapshot().Text())
	assert.Contains(t, job.Prompt(), "cat")
}

func TestOrchestrator_SummaryInsertsAfterSelection(t *testing.T) {
	svc := &generatetest.Scripted{Tokens: []string{" (short)"}}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	ed := newEditor("A long text")
	job, err := o.Submit(ed, Request{Action: prompt.ActionSummary, Range: span(0, 0, 11)})
	require.NoError(t, err)
	assert.Equal(t, "insert_after", job.Mode)

	waitJob(t, job)
	assert.Equal(t, "A long text (short)", ed.Snapshot().Text())
	assert.Contains(t, job.Prompt(), "A long text")
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	o := newOrchestrator(t, testConfig(), &generatetest.Scripted{})
	ed := newEditor("text")

	_, err := o.Submit(ed, Request{Action: "rewrite"})
	assert.ErrorIs(t, err, prompt.ErrUnknownAction)

	_, err = o.Submit(ed, Request{Action: prompt.ActionContinue, Model: "missing"})
	assert.ErrorIs(t, err, generate.ErrUnknownModel)

	_, err = o.Submit(ed, Request{Action: prompt.ActionProofread, Range: span(0, 2, 2)})
	assert.ErrorIs(t, err, prompt.ErrEmptyText)

	_, err = o.Submit(ed, Request{Action: prompt.ActionContinue, Range: span(5, 0, 0)})
	assert.ErrorIs(t, err, doctree.ErrOutOfRange)
}

func TestOrchestrator_QueueFullFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	o := newOrchestrator(t, cfg, &generatetest.Scripted{Tokens: []string{"x"}})
	ed := newEditor("text")

	first, err := o.Submit(ed, Request{Action: prompt.ActionContinue})
	require.NoError(t, err)
	assert.Equal(t, 1, o.QueueDepth())

	_, err = o.Submit(ed, Request{Action: prompt.ActionContinue})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, StatusQueued, first.GetStatus())
}

func TestOrchestrator_CancelQueuedJob(t *testing.T) {
	o := newOrchestrator(t, testConfig(), &generatetest.Scripted{Tokens: []string{"x"}})
	ed := newEditor("text")

	job, err := o.Submit(ed, Request{Action: prompt.ActionContinue})
	require.NoError(t, err)
	assert.True(t, o.Cancel(job.ID))
	assert.False(t, o.Cancel("missing"))
	assert.Equal(t, StatusCancelled, job.GetStatus())

	o.Start(context.Background())
	require.Eventually(t, func() bool { return o.QueueDepth() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "text", ed.Snapshot().Text())
	assert.Equal(t, StatusCancelled, job.GetStatus())
}

func TestOrchestrator_CancelKeepsCommittedText(t *testing.T) {
	reached := make(chan struct{})
	release := make(chan struct{})
	svc := &generatetest.Scripted{
		Tokens: []string{"a", "b", "c"},
		Step: func(i int) {
			if i == 1 {
				close(reached)
				<-release
			}
		},
	}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	ed := newEditor("")
	job, err := o.Submit(ed, Request{Action: prompt.ActionContinue})
	require.NoError(t, err)

	<-reached
	assert.Equal(t, 1, o.CancelDoc("doc-1"))
	close(release)

	snap := waitJob(t, job)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, "a", ed.Snapshot().Text())
}

func TestOrchestrator_AnchorLost(t *testing.T) {
	ed := newEditor("intro", "body")
	svc := &generatetest.Scripted{
		Tokens: []string{"A", "B", "C"},
		Step: func(i int) {
			if i != 1 {
				return
			}
			_, err := ed.Apply(transform.DeleteRange{Range: &doctree.Selection{
				Anchor: doctree.Point{Block: 0, Offset: 5},
				Focus:  doctree.Point{Block: 1, Offset: 5},
			}})
			assert.NoError(t, err)
		},
	}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	job, err := o.Submit(ed, Request{Action: prompt.ActionContinue, Range: span(1, 4, 4)})
	require.NoError(t, err)

	snap := waitJob(t, job)
	assert.Equal(t, StatusAnchorLost, snap.Status)
	assert.Equal(t, 1, snap.Progress.Tokens)
	assert.Equal(t, "intro", ed.Snapshot().Text())
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "anchor lost")
}

func TestOrchestrator_GenerationFailure(t *testing.T) {
	svc := &generatetest.Scripted{Tokens: []string{"a", "b"}, Err: assert.AnError, FailAfter: 1}
	o := newOrchestrator(t, testConfig(), svc)
	o.Start(context.Background())

	ed := newEditor("")
	job, err := o.Submit(ed, Request{Action: prompt.ActionContinue})
	require.NoError(t, err)

	snap := waitJob(t, job)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "a", ed.Snapshot().Text())
	assert.Equal(t, 1, snap.Progress.Tokens)
}

func TestOrchestrator_PromptAndAnchorShareVersion(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 2000
	o := newOrchestrator(t, cfg, &generatetest.Scripted{})

	ed := newEditor("The cat sat")
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, err := ed.Apply(transform.InsertText{Range: span(0, 0, 0), Text: "x", PreserveSelection: true})
			assert.NoError(t, err)
			_, err = ed.Apply(transform.DeleteRange{Range: span(0, 0, 1), PreserveSelection: true})
			assert.NoError(t, err)
		}
	}()

	for range cfg.MaxQueueSize {
		job, err := o.Submit(ed, Request{Action: prompt.ActionProofread, Range: span(0, 4, 7)})
		require.NoError(t, err)
		selected := job.session.Selected()
		if !strings.Contains(job.Prompt(), "\"\"\"\n"+selected+"\n\"\"\"") {
			t.Fatalf("prompt built over different text than the anchor %q:\n%s", selected, job.Prompt())
		}
	}
	close(stop)
	wg.Wait()
}

func TestOrchestrator_RejectsCaretOnImage(t *testing.T) {
	o := newOrchestrator(t, testConfig(), &generatetest.Scripted{})
	ed := editor.New("doc-1", doctree.FromBlocks([]doctree.Block{
		doctree.NewBlock(doctree.KindParagraph, "caption"),
		doctree.NewImageBlock(doctree.Image{Src: "https://example.com/a.png"}),
	}))

	_, err := o.Submit(ed, Request{Action: prompt.ActionContinue, Range: span(1, 0, 0)})
	assert.ErrorIs(t, err, transform.ErrVoidBlock)
	assert.Equal(t, 0, o.QueueDepth())
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := newOrchestrator(t, testConfig(), &generatetest.Scripted{})
	o.Start(context.Background())
	o.Stop()

	_, err := o.Submit(newEditor("text"), Request{Action: prompt.ActionContinue})
	assert.ErrorIs(t, err, ErrStopped)
}
