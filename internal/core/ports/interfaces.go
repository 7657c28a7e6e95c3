package ports

import (
	"context"
	"io"

	"vectorart/internal/core/domain"
)

// Uploader defines the contract for pushing a source image to object
// storage.
type Uploader interface {
	// Upload stores the file and returns its public retrieval URL.
	Upload(ctx context.Context, file domain.SelectedFile) (string, error)
}

// Submitter defines the contract for creating a generation job.
type Submitter interface {
	// Submit posts a transformation request for the given source image and
	// returns the created job with its initial status.
	Submit(ctx context.Context, imageURL string) (*domain.GenerationJob, error)
}

// Poller defines the contract for waiting on a job.
type Poller interface {
	// Poll queries job status until a terminal state or the poll budget is
	// exhausted. onProgress, if non-nil, receives the 1-based attempt number
	// after each non-terminal response.
	Poll(ctx context.Context, jobID string, onProgress func(attempt int)) (*domain.GenerationJob, error)
}

// Artifact is a downloaded result stream. The caller must close Body.
type Artifact struct {
	Body        io.ReadCloser
	ContentType string
}

// Downloader defines the contract for fetching the generated artifact.
type Downloader interface {
	// Download fetches the artifact at resultURL, trying the proxy endpoint
	// first and falling back to a direct fetch.
	Download(ctx context.Context, resultURL string) (*Artifact, error)
}

// RunStore defines the contract for persisting run artifacts.
type RunStore interface {
	// InitRun creates the run directory structure.
	InitRun(ctx context.Context, runID string) error

	// SaveInput saves the run input record.
	SaveInput(ctx context.Context, runID string, data []byte) error

	// SaveArtifact saves the downloaded artifact from the provided reader
	// and returns the final file path.
	SaveArtifact(ctx context.Context, runID string, reader io.Reader, filename string) (string, error)

	// RunPath returns the filesystem path for a given run ID.
	RunPath(runID string) string
}
