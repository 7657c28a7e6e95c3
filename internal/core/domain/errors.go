package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInFlight is returned when a second generation run is requested
	// while one is still active on the same pipeline instance.
	ErrRunInFlight = errors.New("a pipeline run is already in flight")

	// ErrNoUploadedImage is returned when generation is requested before any
	// image has been uploaded.
	ErrNoUploadedImage = errors.New("no uploaded image")

	// ErrNoResult is returned when a download is requested before a job has
	// completed with an artifact.
	ErrNoResult = errors.New("no result available")
)

// ValidationError rejects a selected file before any network call is made.
type ValidationError struct {
	MIME string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("not a valid image file (type %q)", e.MIME)
}

// Upload failure reasons.
const (
	UploadReasonSignedURL = "signed-url"
	UploadReasonPut       = "put"
)

// UploadError reports a failure during signed-URL issuance or the PUT of
// the file bytes.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	switch e.Reason {
	case UploadReasonSignedURL:
		return fmt.Sprintf("failed to get signed URL: %v", e.Err)
	case UploadReasonPut:
		return fmt.Sprintf("failed to upload file: %v", e.Err)
	default:
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmitError reports a job creation failure. Terminal for that generation
// attempt; there is no retry at this layer.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("failed to submit job: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Job failure reasons.
const (
	JobReasonStatus  = "status"
	JobReasonHTTP    = "http"
	JobReasonTimeout = "timeout"
)

// JobError reports a terminal job failure: the job itself failed, a status
// check request failed, or the poll budget ran out.
type JobError struct {
	Reason  string
	Message string
}

func (e *JobError) Error() string { return e.Message }

// DownloadError reports that both download strategies were exhausted.
type DownloadError struct {
	ProxyErr  error
	DirectErr error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed (proxy: %v; direct: %v)", e.ProxyErr, e.DirectErr)
}
