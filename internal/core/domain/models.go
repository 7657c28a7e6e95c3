package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// JobStatus is the server-side state of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusError      JobStatus = "error"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

// GenerationJob is the job record returned by the submit and status
// endpoints. Result is kept raw because the backend returns either a single
// object or an ordered sequence; see ArtifactURL.
type GenerationJob struct {
	JobID        string          `json:"jobId"`
	Status       JobStatus       `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
}

// ArtifactReference points at the generated artifact. Some backends populate
// mediaUrl, older ones image.
type ArtifactReference struct {
	MediaURL string `json:"mediaUrl"`
	Image    string `json:"image"`
}

// ArtifactURL extracts the artifact URL from a completed job's result
// payload. When the payload is a sequence, the first element is
// authoritative and the rest are ignored.
func (j *GenerationJob) ArtifactURL() (string, bool) {
	if len(j.Result) == 0 {
		return "", false
	}

	var ref ArtifactReference
	var seq []ArtifactReference
	if err := json.Unmarshal(j.Result, &seq); err == nil {
		if len(seq) == 0 {
			return "", false
		}
		ref = seq[0]
	} else if err := json.Unmarshal(j.Result, &ref); err != nil {
		return "", false
	}

	if ref.MediaURL != "" {
		return ref.MediaURL, true
	}
	if ref.Image != "" {
		return ref.Image, true
	}
	return "", false
}

// SelectedFile is a user-selected source image.
type SelectedFile struct {
	Name  string
	MIME  string
	Bytes []byte
}

// IsImage reports whether the file's declared type is an image type.
func (f SelectedFile) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// Stage is a pipeline controller state.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageUploading  Stage = "UPLOADING"
	StageReady      Stage = "READY"
	StageSubmitting Stage = "SUBMITTING"
	StagePolling    Stage = "POLLING"
	StageComplete   Stage = "COMPLETE"
	StageError      Stage = "ERROR"
)

// Event is a pipeline progress notification delivered to the UI collaborator.
// Attempt is non-zero only for polling progress.
type Event struct {
	Stage   Stage
	Attempt int
	Message string
}

// PipelineState is the single source of truth held by the pipeline
// controller. ResultURL is set only after a job completes with a resolvable
// artifact; UploadedURL is cleared on reset and on no other path.
type PipelineState struct {
	UploadedURL string
	ResultURL   string
}

// RunInput is the record persisted when a run starts.
type RunInput struct {
	RunID       string    `json:"run_id"`
	SourceFile  string    `json:"source_file"`
	ObjectName  string    `json:"object_name"`
	UploadedURL string    `json:"uploaded_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunResult holds the outcome of a completed pipeline run.
type RunResult struct {
	RunID        string
	SourceFile   string
	UploadedURL  string
	JobID        string
	ResultURL    string
	ArtifactPath string
	Success      bool
	ErrorMessage string
	CompletedAt  time.Time
}

// ExtensionFromType maps a response content type to a download file
// extension. The artifact's format may differ from the upload's, so the
// extension always comes from the response, never the source filename.
// Total function: unknown types default to jpg.
func ExtensionFromType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.TrimSpace(contentType) {
	case "image/svg+xml":
		return "svg"
	case "image/png":
		return "png"
	default:
		return "jpg"
	}
}
