// Package pipeline drives the remote video generation lifecycle for a shot:
// submit, poll to completion, download, persist, thumbnail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storyreel/internal/blob"
	"storyreel/internal/domain"
	"storyreel/internal/thumbnail"
	"storyreel/internal/veo"
)

// PollTimeoutError reports that the poll attempt ceiling was reached before
// the operation completed.
type PollTimeoutError struct {
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("pipeline: generation timed out after %d poll attempts", e.Attempts)
}

// OperationError reports that the remote job itself failed. It carries the
// provider's message, which is suitable for display.
type OperationError struct {
	Code    int
	Message string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pipeline: remote operation failed (code %d)", e.Code)
	}
	return e.Message
}

// OperationClient is the stateless protocol surface the orchestrator drives.
// Implemented by veo.Client.
type OperationClient interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (string, error)
	Poll(ctx context.Context, operationName string) (*veo.Operation, error)
	FetchBinary(ctx context.Context, locator string) ([]byte, error)
}

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
	defaultBatchSize    = 2
)

// Options configures an Orchestrator. PollInterval and MaxAttempts are
// deliberate configuration inputs, not hardwired constants.
type Options struct {
	Client       OperationClient
	Store        *blob.Store
	Thumbnails   thumbnail.Extractor
	Logger       zerolog.Logger
	PollInterval time.Duration
	MaxAttempts  int
	BatchSize    int
}

// Orchestrator owns the generation lifecycle. All per-job mutable state
// lives on Job values, never on the orchestrator itself, so concurrent
// shots cannot interfere with each other's counters.
type Orchestrator struct {
	client       OperationClient
	store        *blob.Store
	thumbs       thumbnail.Extractor
	logger       zerolog.Logger
	pollInterval time.Duration
	maxAttempts  int
	batchSize    int
}

func New(opts Options) *Orchestrator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Orchestrator{
		client:       opts.Client,
		store:        opts.Store,
		thumbs:       opts.Thumbnails,
		logger:       opts.Logger,
		pollInterval: interval,
		maxAttempts:  attempts,
		batchSize:    batch,
	}
}

// Job is the isolated state of one shot's generation: its request, attempt
// counter, current status and cancellation hook.
type Job struct {
	shotIndex int
	request   domain.GenerationRequest
	onStatus  StatusFunc

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	canceled bool
}

// NewJob prepares a job for a shot. Run drives it to a terminal state.
func (o *Orchestrator) NewJob(shotIndex int, req domain.GenerationRequest, onStatus StatusFunc) *Job {
	return &Job{
		shotIndex: shotIndex,
		request:   req,
		onStatus:  onStatus,
		status:    Status{State: StateIdle},
	}
}

// Status returns a snapshot of the job's current progress.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Cancel discards local interest in the job: the local status resets to idle
// and no further poll results are consumed. The remote job, if any, keeps
// running; its eventual completion is simply never fetched.
func (j *Job) Cancel() {
	j.mu.Lock()
	j.canceled = true
	cancel := j.cancel
	j.status = Status{State: StateIdle}
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) emit(s Status) {
	j.mu.Lock()
	if j.canceled {
		j.mu.Unlock()
		return
	}
	j.status = s
	onStatus := j.onStatus
	j.mu.Unlock()
	if onStatus != nil {
		onStatus(s)
	}
}

func (j *Job) bindContext(ctx context.Context) (context.Context, bool) {
	runCtx, cancel := context.WithCancel(ctx)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.canceled {
		cancel()
		return runCtx, false
	}
	j.cancel = cancel
	return runCtx, true
}

// Run drives the job through its full lifecycle and blocks until terminal.
// On success the final binary is stored under the shot's video key, a
// thumbnail is derived best-effort, and a fresh ephemeral handle to the
// stored video is returned.
func (o *Orchestrator) Run(ctx context.Context, j *Job) (*blob.Handle, error) {
	ctx, ok := j.bindContext(ctx)
	if !ok {
		return nil, context.Canceled
	}

	handle, err := o.run(ctx, j)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Local cancellation is not a failure; the status was
			// already reset to idle.
			return nil, err
		}
		j.emit(Status{State: StateError, Progress: 0, Message: displayMessage(err)})
		return nil, err
	}
	return handle, nil
}

func (o *Orchestrator) run(ctx context.Context, j *Job) (*blob.Handle, error) {
	if err := j.request.Validate(); err != nil {
		return nil, err
	}

	j.emit(Status{State: StateGenerating, Progress: 5, Message: "Submitting generation request"})

	opName, err := o.client.Submit(ctx, j.request)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Int("shot", j.shotIndex).Str("operation", opName).Msg("pipeline: operation submitted")

	j.emit(Status{State: StatePolling, Progress: 10, Message: "Rendering video", OperationName: opName})

	op, err := o.pollUntilDone(ctx, j, opName)
	if err != nil {
		return nil, err
	}

	locator, err := extractResultLocator(op.Response)
	if err != nil {
		return nil, err
	}

	j.emit(Status{State: StateDownloading, Progress: 90, Message: "Downloading video", OperationName: opName})

	data, err := o.client.FetchBinary(ctx, locator)
	if err != nil {
		return nil, err
	}

	videoKey := blob.VideoKey(j.shotIndex)
	if err := o.store.Put(ctx, videoKey, data); err != nil {
		return nil, err
	}
	o.storeThumbnail(ctx, j.shotIndex, data)

	handle, err := o.store.ResolveEphemeral(ctx, videoKey)
	if err != nil {
		return nil, err
	}

	j.emit(Status{State: StateCompleted, Progress: 100, Message: "Video ready", OperationName: opName})
	o.logger.Info().Int("shot", j.shotIndex).Int("bytes", len(data)).Msg("pipeline: video stored")
	return handle, nil
}

// pollUntilDone polls the operation on a fixed cadence until it reports
// done or the attempt ceiling is reached. Failures of the poll call itself
// are transient and retried on the same cadence; only an error reported by
// the operation is terminal.
func (o *Orchestrator) pollUntilDone(ctx context.Context, j *Job, opName string) (*veo.Operation, error) {
	for attempts := 1; attempts <= o.maxAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.pollInterval):
		}

		op, err := o.client.Poll(ctx, opName)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn().Err(err).Int("shot", j.shotIndex).Int("attempt", attempts).
				Msg("pipeline: poll failed, retrying")
			continue
		}

		if op.Done {
			if op.Error != nil {
				return nil, &OperationError{Code: op.Error.Code, Message: op.Error.Message}
			}
			return op, nil
		}

		progress := int(math.Round(float64(attempts) / float64(o.maxAttempts) * 80))
		if progress > 80 {
			progress = 80
		}
		if prev := j.Status().Progress; progress < prev {
			progress = prev
		}
		j.emit(Status{State: StatePolling, Progress: progress, Message: "Rendering video", OperationName: opName})
	}
	return nil, &PollTimeoutError{Attempts: o.maxAttempts}
}

// storeThumbnail derives and stores a preview frame. Thumbnail failure is
// logged and swallowed; it never fails the generation.
func (o *Orchestrator) storeThumbnail(ctx context.Context, shotIndex int, video []byte) {
	if o.thumbs == nil {
		return
	}
	still, err := o.thumbs.Extract(ctx, video)
	if err != nil {
		o.logger.Warn().Err(err).Int("shot", shotIndex).Msg("pipeline: thumbnail extraction failed")
		return
	}
	if err := o.store.Put(ctx, blob.ThumbnailKey(shotIndex), still); err != nil {
		o.logger.Warn().Err(err).Int("shot", shotIndex).Msg("pipeline: thumbnail store failed")
	}
}

// RunAll drives several jobs with bounded concurrency so a "generate all"
// does not fire unbounded parallel requests at the remote API. Each job's
// outcome is delivered through done; RunAll returns the first error.
func (o *Orchestrator) RunAll(ctx context.Context, jobs []*Job, done func(j *Job, handle *blob.Handle, err error)) error {
	g := new(errgroup.Group)
	g.SetLimit(o.batchSize)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			handle, err := o.Run(ctx, j)
			if done != nil {
				done(j, handle, err)
			}
			return err
		})
	}
	return g.Wait()
}

// ShotIndex identifies which shot the job belongs to.
func (j *Job) ShotIndex() int { return j.shotIndex }

// displayMessage keeps user-facing status text free of wrapped internals
// where a cleaner message exists.
func displayMessage(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Message
	}
	var timeoutErr *PollTimeoutError
	if errors.As(err, &timeoutErr) {
		return "Generation timed out; please try again"
	}
	return err.Error()
}
