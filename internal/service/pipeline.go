package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vectorart/internal/core/domain"
	"vectorart/internal/core/ports"
	"vectorart/internal/nanoid"
)

// EventSink receives pipeline progress events. Sinks are invoked inline from
// the pipeline goroutine and must not block.
type EventSink func(domain.Event)

// Pipeline coordinates the generation workflow: upload, submit, poll,
// download. It owns the pipeline state; stages only ever see URLs and
// identifiers, never each other's internals.
type Pipeline struct {
	uploader   ports.Uploader
	submitter  ports.Submitter
	poller     ports.Poller
	downloader ports.Downloader
	store      ports.RunStore
	logger     zerolog.Logger
	events     EventSink

	mu           sync.Mutex
	stage        domain.Stage
	state        domain.PipelineState
	running      bool
	runID        string
	sourceFile   string
	jobID        string
	artifactPath string
	completedAt  time.Time
}

// NewPipeline creates a new Pipeline in the IDLE state. events may be nil.
func NewPipeline(
	uploader ports.Uploader,
	submitter ports.Submitter,
	poller ports.Poller,
	downloader ports.Downloader,
	store ports.RunStore,
	logger zerolog.Logger,
	events EventSink,
) *Pipeline {
	return &Pipeline{
		uploader:   uploader,
		submitter:  submitter,
		poller:     poller,
		downloader: downloader,
		store:      store,
		logger:     logger,
		events:     events,
		stage:      domain.StageIdle,
	}
}

// Stage returns the current pipeline stage.
func (p *Pipeline) Stage() domain.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// State returns a snapshot of the pipeline state.
func (p *Pipeline) State() domain.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns a snapshot of the run outcome for summary reporting.
func (p *Pipeline) Result() domain.RunResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.RunResult{
		RunID:        p.runID,
		SourceFile:   p.sourceFile,
		UploadedURL:  p.state.UploadedURL,
		JobID:        p.jobID,
		ResultURL:    p.state.ResultURL,
		ArtifactPath: p.artifactPath,
		Success:      p.stage == domain.StageComplete,
		CompletedAt:  p.completedAt,
	}
}

// SelectFile validates and uploads a source image, caching its public URL.
// Non-image files are rejected before any network call and leave the
// pipeline untouched.
func (p *Pipeline) SelectFile(ctx context.Context, file domain.SelectedFile) error {
	if !file.IsImage() {
		return &domain.ValidationError{MIME: file.MIME}
	}
	if err := p.begin(); err != nil {
		return err
	}
	defer p.end()

	p.setStage(domain.StageUploading, "UPLOADING...")
	p.logger.Info().Str("file", file.Name).Msg("uploading source image")

	runID := uuid.New().String()
	if err := p.store.InitRun(ctx, runID); err != nil {
		return p.fail(fmt.Errorf("failed to init run: %w", err))
	}

	uploadedURL, err := p.uploader.Upload(ctx, file)
	if err != nil {
		return p.fail(err)
	}

	p.mu.Lock()
	p.runID = runID
	p.sourceFile = file.Name
	p.state.UploadedURL = uploadedURL
	p.mu.Unlock()

	input, _ := json.MarshalIndent(domain.RunInput{
		RunID:       runID,
		SourceFile:  file.Name,
		ObjectName:  path.Base(uploadedURL),
		UploadedURL: uploadedURL,
		CreatedAt:   time.Now().UTC(),
	}, "", "  ")
	_ = p.store.SaveInput(ctx, runID, input)

	p.setStage(domain.StageReady, "READY")
	return nil
}

// Generate submits a job for the cached uploaded image and polls it to
// completion. Permitted from READY, ERROR (retry without re-upload) and
// COMPLETE (regenerate); a run already in flight is rejected.
func (p *Pipeline) Generate(ctx context.Context) (*domain.GenerationJob, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, domain.ErrRunInFlight
	}
	if p.state.UploadedURL == "" {
		p.mu.Unlock()
		return nil, domain.ErrNoUploadedImage
	}
	p.running = true
	imageURL := p.state.UploadedURL
	p.mu.Unlock()
	defer p.end()

	p.setStage(domain.StageSubmitting, "SUBMITTING JOB...")
	job, err := p.submitter.Submit(ctx, imageURL)
	if err != nil {
		return nil, p.fail(err)
	}

	p.setStage(domain.StagePolling, "JOB QUEUED...")
	final, err := p.poller.Poll(ctx, job.JobID, func(attempt int) {
		p.emit(domain.Event{
			Stage:   domain.StagePolling,
			Attempt: attempt,
			Message: fmt.Sprintf("PROCESSING... (%d)", attempt),
		})
	})
	if err != nil {
		return nil, p.fail(err)
	}

	resultURL, ok := final.ArtifactURL()
	if !ok {
		return nil, p.fail(&domain.JobError{Reason: domain.JobReasonStatus, Message: "No image URL in response"})
	}
	p.logger.Info().Str("job_id", job.JobID).Str("result", resultURL).Msg("job completed")

	p.mu.Lock()
	p.jobID = job.JobID
	p.state.ResultURL = resultURL
	p.completedAt = time.Now().UTC()
	p.mu.Unlock()

	p.setStage(domain.StageComplete, "COMPLETE")
	return final, nil
}

// Download fetches the generated artifact and saves it under the run
// directory as vector_art_<id>.<ext>, the extension taken from the
// response's content type. A download failure does not change the pipeline
// stage; the user can still save the result manually from its URL.
func (p *Pipeline) Download(ctx context.Context) (string, error) {
	p.mu.Lock()
	resultURL := p.state.ResultURL
	runID := p.runID
	p.mu.Unlock()
	if resultURL == "" {
		return "", domain.ErrNoResult
	}

	artifact, err := p.downloader.Download(ctx, resultURL)
	if err != nil {
		p.logger.Warn().Err(err).Msg("download failed")
		p.emit(domain.Event{
			Stage:   p.Stage(),
			Message: "Download failed. Save the image manually from " + resultURL,
		})
		return "", err
	}
	defer artifact.Body.Close()

	filename := "vector_art_" + nanoid.Generate(8) + "." + domain.ExtensionFromType(artifact.ContentType)
	saved, err := p.store.SaveArtifact(ctx, runID, artifact.Body, filename)
	if err != nil {
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}

	p.mu.Lock()
	p.artifactPath = saved
	p.mu.Unlock()

	p.logger.Info().Str("path", saved).Msg("saved artifact")
	return saved, nil
}

// Reset clears all pipeline state and returns to IDLE unconditionally.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.state = domain.PipelineState{}
	p.runID = ""
	p.sourceFile = ""
	p.jobID = ""
	p.artifactPath = ""
	p.completedAt = time.Time{}
	p.stage = domain.StageIdle
	p.mu.Unlock()

	p.emit(domain.Event{Stage: domain.StageIdle, Message: "RESET"})
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return domain.ErrRunInFlight
	}
	p.running = true
	return nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) setStage(stage domain.Stage, message string) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
	p.emit(domain.Event{Stage: stage, Message: message})
}

// fail moves the pipeline to ERROR and surfaces the message. The uploaded
// URL is deliberately kept so the user can retry generation without
// re-uploading.
func (p *Pipeline) fail(err error) error {
	p.logger.Error().Err(err).Msg("pipeline stage failed")
	p.setStage(domain.StageError, err.Error())
	return err
}

func (p *Pipeline) emit(ev domain.Event) {
	if p.events != nil {
		p.events(ev)
	}
}
