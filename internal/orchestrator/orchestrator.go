// Package orchestrator drives one conversion pipeline through select,
// validate, submit, resolve, download and reset. The same state machine
// serves the document and audio pipelines.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/spherical/xtox/internal/apierr"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/observability"
	"github.com/spherical/xtox/internal/validate"
)

// State is the lifecycle position of an orchestrator.
type State int

const (
	StateIdle State = iota
	StateFileAccepted
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileAccepted:
		return "file_accepted"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "resolved_success"
	case StateFailed:
		return "resolved_failure"
	default:
		return "unknown"
	}
}

// Resolved reports whether s is one of the two terminal states.
func (s State) Resolved() bool {
	return s == StateSucceeded || s == StateFailed
}

// Downloader fetches a job's artifact and saves it under name.
type Downloader interface {
	Download(ctx context.Context, route, jobID, name string) (string, error)
}

// Snapshot is a consistent copy of the orchestrator's state.
type Snapshot struct {
	Pipeline  string
	State     State
	File      *domain.CandidateFile
	Job       *domain.ConversionJob
	Rejection string
	// Progress is simulated; see SimulatedProgress.
	Progress int
	// ArtifactReady is true once a submission succeeded. It survives a failed
	// download so the download can be retried.
	ArtifactReady bool
}

// Option configures an Orchestrator.
type Option func(*settings)

type settings struct {
	progress ProgressConfig
	logger   *observability.Logger
	events   chan<- domain.Event
}

// WithProgress overrides the simulated progress cadence.
func WithProgress(cfg ProgressConfig) Option {
	return func(s *settings) { s.progress = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEvents makes the orchestrator publish lifecycle events on ch. Sends
// never block; events are dropped when ch is full.
func WithEvents(ch chan<- domain.Event) Option {
	return func(s *settings) { s.events = ch }
}

// Orchestrator is safe for concurrent use. It never runs two submissions at
// once.
type Orchestrator[O any] struct {
	pipeline    Pipeline[O]
	service     domain.ConversionService
	downloader  Downloader
	progressCfg ProgressConfig
	logger      *observability.Logger
	events      chan<- domain.Event

	mu            sync.Mutex
	state         State
	file          *domain.CandidateFile
	job           *domain.ConversionJob
	opts          O
	rejection     string
	progress      *SimulatedProgress
	artifactReady bool
	downloading   bool
	generation    uint64
	resetTimer    *time.Timer
}

// New creates an idle orchestrator for pipeline p.
func New[O any](p Pipeline[O], service domain.ConversionService, downloader Downloader, opts ...Option) (*Orchestrator[O], error) {
	if service == nil {
		return nil, domain.ConfigError("conversion service is required", nil)
	}
	if downloader == nil {
		return nil, domain.ConfigError("artifact downloader is required", nil)
	}
	if p.BuildQuery == nil || p.ArtifactName == nil {
		return nil, domain.ConfigError("pipeline "+p.Name+" is incomplete", nil)
	}

	s := settings{progress: DefaultProgressConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = observability.Nop()
	}

	return &Orchestrator[O]{
		pipeline:    p,
		service:     service,
		downloader:  downloader,
		progressCfg: s.progress.withDefaults(),
		logger:      s.logger.WithPipeline(p.Name),
		events:      s.events,
		state:       StateIdle,
	}, nil
}

// Pipeline returns the pipeline this orchestrator runs.
func (o *Orchestrator[O]) Pipeline() Pipeline[O] {
	return o.pipeline
}

// SelectFile validates file and makes it the current candidate. A nil file
// means nothing is selected and returns to idle without error. A rejected
// file also returns to idle; the rejection is returned and kept in the
// snapshot. Any previous job is discarded either way, and a download still
// in flight for it is superseded.
func (o *Orchestrator[O]) SelectFile(file *domain.CandidateFile) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateSubmitting {
		return domain.ErrSubmissionInFlight
	}
	if o.downloading {
		o.generation++
		o.downloading = false
	}

	accepted, err := validate.Validate(file, o.pipeline.Constraint)
	o.job = nil
	o.artifactReady = false
	o.rejection = ""
	o.file = nil
	o.state = StateIdle

	if err != nil {
		o.rejection = domain.UserMessage(err)
		o.logger.Info().Str("file", file.Name).Str("reason", o.rejection).Msg("file rejected")
		o.emit(domain.EventFileRejected, o.rejection)
		return err
	}
	if accepted == nil {
		return nil
	}

	o.file = accepted
	o.state = StateFileAccepted
	o.logger.Debug().Str("file", accepted.Name).Int64("size", accepted.Size).Msg("file accepted")
	o.emit(domain.EventFileAccepted, accepted.Name)
	return nil
}

// Submit sends the accepted file with opts and blocks until the service
// answers. Invalid options are rejected before anything changes. On a
// service failure the stored job becomes a failure record carrying the
// classified message and the classified error is returned.
func (o *Orchestrator[O]) Submit(ctx context.Context, opts O) (*domain.ConversionJob, error) {
	o.mu.Lock()
	switch o.state {
	case StateFileAccepted:
	case StateSubmitting:
		o.mu.Unlock()
		return nil, domain.ErrSubmissionInFlight
	default:
		o.mu.Unlock()
		return nil, domain.ErrNotReady
	}

	query, err := o.pipeline.BuildQuery(opts)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	o.generation++
	gen := o.generation
	o.stopResetTimer()
	o.state = StateSubmitting
	o.job = nil
	o.artifactReady = false
	o.rejection = ""
	o.opts = opts
	file := o.file
	progress := NewSimulatedProgress(o.progressCfg)
	o.progress = progress
	o.emit(domain.EventSubmitting, file.Name)
	o.mu.Unlock()

	log := o.logger.WithContext(ctx)
	log.Info().Str("file", file.Name).Str("query", query.Encode()).Msg("submitting")

	progress.Start(func(v int) {
		o.emitProgress(v)
	})
	defer progress.Stop()

	start := time.Now()
	job, err := o.service.Submit(ctx, o.pipeline.Routes.Convert, file, query)
	progress.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		log.Debug().Msg("submission result discarded after reset")
		return nil, domain.ErrSuperseded
	}

	if err != nil {
		msg := failureMessage(err, o.pipeline.SubmitFailure)
		progress.Set(0)
		o.job = domain.FailedJob(msg)
		o.state = StateFailed
		o.scheduleProgressReset(gen)
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("submission failed")
		o.emit(domain.EventFailed, msg)
		return nil, err
	}

	progress.Set(100)
	o.job = job.Clone()
	if o.job.Success {
		o.state = StateSucceeded
		o.artifactReady = true
		o.emit(domain.EventSucceeded, o.job.Clone())
	} else {
		// The service answered but could not convert; its own errors stand.
		o.state = StateFailed
		o.emit(domain.EventFailed, o.job.Clone())
	}
	o.scheduleProgressReset(gen)

	log.Info().
		Str("job_id", o.job.ID).
		Bool("success", o.job.Success).
		Int("errors", len(o.job.Errors)).
		Int("warnings", len(o.job.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("submission resolved")

	return o.job.Clone(), nil
}

// Status polls the service for the current job. It does not change state.
func (o *Orchestrator[O]) Status(ctx context.Context) (*domain.ConversionJob, error) {
	o.mu.Lock()
	if o.job == nil || o.job.ID == "" {
		o.mu.Unlock()
		return nil, domain.ErrNothingToDownload
	}
	id := o.job.ID
	o.mu.Unlock()

	return o.service.FetchStatus(ctx, o.pipeline.Routes.Status, id)
}

// Download saves the artifact of the successful job and returns where it
// went. A failed download appends its message to the job, clears the
// success flag and leaves everything else in place; calling Download again
// is allowed.
func (o *Orchestrator[O]) Download(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.downloading {
		o.mu.Unlock()
		return "", domain.ErrDownloadInFlight
	}
	if !o.artifactReady || o.job == nil {
		o.mu.Unlock()
		return "", domain.ErrNothingToDownload
	}
	gen := o.generation
	id := o.job.ID
	name := o.pipeline.ArtifactName(o.job, o.opts)
	o.downloading = true
	o.mu.Unlock()

	location, err := o.downloader.Download(ctx, o.pipeline.Routes.Download, id, name)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation || o.job == nil {
		return "", domain.ErrSuperseded
	}
	o.downloading = false

	log := o.logger.WithContext(ctx)
	if err != nil {
		msg := failureMessage(err, o.pipeline.DownloadFailure)
		o.job.Errors = append(o.job.Errors, msg)
		o.job.Success = false
		o.state = StateFailed
		log.Warn().Err(err).Str("job_id", id).Msg("download failed")
		o.emit(domain.EventDownloadFailed, msg)
		return "", err
	}

	log.Info().Str("job_id", id).Str("location", location).Msg("artifact saved")
	o.emit(domain.EventDownloaded, location)
	return location, nil
}

// Reset returns to idle with no file and no job. A submission still in
// flight keeps running but its result is discarded. Reset is idempotent.
func (o *Orchestrator[O]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.generation++
	o.stopResetTimer()
	if o.progress != nil {
		o.progress.Stop()
		o.progress = nil
	}

	var zero O
	o.state = StateIdle
	o.file = nil
	o.job = nil
	o.opts = zero
	o.rejection = ""
	o.artifactReady = false
	o.downloading = false
	o.emit(domain.EventReset, nil)
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator[O]) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Pipeline:      o.pipeline.Name,
		State:         o.state,
		File:          o.file,
		Job:           o.job.Clone(),
		Rejection:     o.rejection,
		ArtifactReady: o.artifactReady,
	}
	if o.progress != nil {
		snap.Progress = o.progress.Value()
	}
	return snap
}

// scheduleProgressReset clears the display after the configured delay unless
// a newer submission or a reset got there first. Caller holds o.mu.
func (o *Orchestrator[O]) scheduleProgressReset(gen uint64) {
	progress := o.progress
	o.resetTimer = time.AfterFunc(o.progressCfg.ResetDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.generation == gen && o.progress == progress {
			progress.Set(0)
		}
	})
}

// stopResetTimer cancels a pending cosmetic reset. Caller holds o.mu.
func (o *Orchestrator[O]) stopResetTimer() {
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
}

// emit publishes an event without blocking. It must not take o.mu because
// the progress goroutine calls it while Stop may be waiting under the lock.
func (o *Orchestrator[O]) emit(t domain.EventType, payload interface{}) {
	o.send(domain.Event{Type: t, Pipeline: o.pipeline.Name, Payload: payload, Time: time.Now()})
}

func (o *Orchestrator[O]) emitProgress(v int) {
	o.send(domain.Event{Type: domain.EventProgress, Pipeline: o.pipeline.Name, Progress: v, Time: time.Now()})
}

func (o *Orchestrator[O]) send(ev domain.Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	default:
		o.logger.Warn().Str("event", string(ev.Type)).Msg("event channel full, dropping event")
	}
}

// failureMessage prefers the classified message, then the error's own
// message, then the pipeline's generic text.
func failureMessage(err error, fallback string) string {
	if ce, ok := apierr.As(err); ok && ce.Message != "" {
		return ce.Message
	}
	if msg := domain.UserMessage(err); msg != "" {
		return msg
	}
	return fallback
}
