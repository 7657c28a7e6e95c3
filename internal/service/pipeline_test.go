package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorart/internal/adapters/chroma"
	"vectorart/internal/adapters/localstorage"
	"vectorart/internal/core/domain"
	"vectorart/internal/core/ports"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, file domain.SelectedFile) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.url, f.err
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	gotURL  string
	job     *domain.GenerationJob
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, imageURL string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	f.calls++
	f.gotURL = imageURL
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	return f.job, f.err
}

type fakePoller struct {
	job *domain.GenerationJob
	err error
}

func (f *fakePoller) Poll(ctx context.Context, jobID string, onProgress func(int)) (*domain.GenerationJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeDownloader struct {
	artifact *ports.Artifact
	err      error
}

func (f *fakeDownloader) Download(ctx context.Context, resultURL string) (*ports.Artifact, error) {
	return f.artifact, f.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) sink(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func completedJob(resultURL string) *domain.GenerationJob {
	return &domain.GenerationJob{
		JobID:  "J1",
		Status: domain.StatusCompleted,
		Result: []byte(fmt.Sprintf(`{"mediaUrl":%q}`, resultURL)),
	}
}

func TestPipeline_SelectFile_RejectsNonImage(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.test/obj.png"}
	p := NewPipeline(uploader, nil, nil, nil, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	err := p.SelectFile(context.Background(), domain.SelectedFile{
		Name: "doc.pdf",
		MIME: "application/pdf",
	})

	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, 0, uploader.calls, "no network call for a rejected file")
	assert.Equal(t, domain.StageIdle, p.Stage())
	assert.Equal(t, domain.PipelineState{}, p.State())
}

func TestPipeline_Generate_WithoutUpload(t *testing.T) {
	p := NewPipeline(nil, &fakeSubmitter{}, nil, nil, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	_, err := p.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrNoUploadedImage)
}

func TestPipeline_Generate_InFlightGuard(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.test/obj.png"}
	submitter := &fakeSubmitter{
		job:     &domain.GenerationJob{JobID: "J1", Status: domain.StatusQueued},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	poller := &fakePoller{job: completedJob("https://x/out.svg")}
	p := NewPipeline(uploader, submitter, poller, nil, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	require.NoError(t, p.SelectFile(context.Background(), domain.SelectedFile{Name: "cat.png", MIME: "image/png"}))

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Generate(context.Background())
		errCh <- err
	}()

	<-submitter.started
	_, err := p.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrRunInFlight)

	close(submitter.block)
	require.NoError(t, <-errCh)
	assert.Equal(t, domain.StageComplete, p.Stage())
}

func TestPipeline_Failure_PreservesUploadedURL(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.test/obj.png"}
	submitter := &fakeSubmitter{job: &domain.GenerationJob{JobID: "J1", Status: domain.StatusQueued}}
	poller := &fakePoller{err: &domain.JobError{Reason: domain.JobReasonStatus, Message: "boom"}}
	p := NewPipeline(uploader, submitter, poller, nil, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	ctx := context.Background()
	require.NoError(t, p.SelectFile(ctx, domain.SelectedFile{Name: "cat.png", MIME: "image/png"}))

	_, err := p.Generate(ctx)
	var jobErr *domain.JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, domain.StageError, p.Stage())
	assert.Equal(t, "https://cdn.test/obj.png", p.State().UploadedURL, "upload survives a poll failure")

	// Retry from ERROR without re-uploading.
	poller.err = nil
	poller.job = completedJob("https://x/out.svg")
	_, err = p.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, p.Stage())
	assert.Equal(t, 1, uploader.calls)
}

func TestPipeline_RegenerateFromComplete(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.test/obj.png"}
	submitter := &fakeSubmitter{job: &domain.GenerationJob{JobID: "J1", Status: domain.StatusQueued}}
	poller := &fakePoller{job: completedJob("https://x/out.svg")}
	p := NewPipeline(uploader, submitter, poller, nil, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	ctx := context.Background()
	require.NoError(t, p.SelectFile(ctx, domain.SelectedFile{Name: "cat.png", MIME: "image/png"}))

	_, err := p.Generate(ctx)
	require.NoError(t, err)
	_, err = p.Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, submitter.calls)
	assert.Equal(t, "https://cdn.test/obj.png", submitter.gotURL, "regeneration reuses the cached upload")
	assert.Equal(t, 1, uploader.calls)
}

func TestPipeline_DownloadFailure_KeepsStage(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.test/obj.png"}
	submitter := &fakeSubmitter{job: &domain.GenerationJob{JobID: "J1", Status: domain.StatusQueued}}
	poller := &fakePoller{job: completedJob("https://x/out.svg")}
	downloader := &fakeDownloader{err: &domain.DownloadError{
		ProxyErr:  errors.New("proxy down"),
		DirectErr: errors.New("forbidden"),
	}}
	rec := &eventRecorder{}
	p := NewPipeline(uploader, submitter, poller, downloader, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), rec.sink)

	ctx := context.Background()
	require.NoError(t, p.SelectFile(ctx, domain.SelectedFile{Name: "cat.png", MIME: "image/png"}))
	_, err := p.Generate(ctx)
	require.NoError(t, err)

	_, err = p.Download(ctx)
	var dlErr *domain.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, domain.StageComplete, p.Stage(), "a failed download does not fail the pipeline")

	events := rec.all()
	last := events[len(events)-1]
	assert.Contains(t, last.Message, "manually")
}

func TestPipeline_Download_WithoutResult(t *testing.T) {
	p := NewPipeline(nil, nil, nil, &fakeDownloader{}, localstorage.NewLocalStorage(t.TempDir()), zerolog.Nop(), nil)

	_, err := p.Download(context.Background())
	require.ErrorIs(t, err, domain.ErrNoResult)
}

func TestPipeline_EndToEnd(t *testing.T) {
	statusCalls := 0
	var srv *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("/get-emd-upload-url", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, srv.URL+"/signed/"+r.URL.Query().Get("fileName"))
	})
	mux.HandleFunc("/signed/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "image/png", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/image-gen", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jobId":"J1","status":"queued"}`)
	})
	mux.HandleFunc("/image-gen/test-user/J1/status", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		if statusCalls == 1 {
			fmt.Fprint(w, `{"status":"processing"}`)
			return
		}
		fmt.Fprint(w, `{"status":"completed","result":{"mediaUrl":"https://x/out.svg"}}`)
	})
	mux.HandleFunc("/download-proxy", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "https://x/out.svg", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "image/svg+xml")
		io.WriteString(w, "<svg/>")
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := chroma.New(chroma.Config{
		APIBase:      srv.URL,
		ContentBase:  srv.URL + "/content",
		UserID:       "test-user",
		PollInterval: time.Millisecond,
	}, zerolog.Nop())
	store := localstorage.NewLocalStorage(t.TempDir())
	rec := &eventRecorder{}
	p := NewPipeline(client, client, client, client, store, zerolog.Nop(), rec.sink)

	ctx := context.Background()

	// Select and upload cat.png.
	err := p.SelectFile(ctx, domain.SelectedFile{Name: "cat.png", MIME: "image/png", Bytes: []byte("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, domain.StageReady, p.Stage())
	uploadedURL := p.State().UploadedURL
	assert.True(t, strings.HasPrefix(uploadedURL, srv.URL+"/content/"), "uploaded URL %s", uploadedURL)
	assert.True(t, strings.HasSuffix(uploadedURL, ".png"), "uploaded URL %s", uploadedURL)

	// Generate: one processing response, then completed.
	job, err := p.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, domain.StageComplete, p.Stage())
	assert.Equal(t, "https://x/out.svg", p.State().ResultURL)
	assert.Equal(t, 2, statusCalls)

	// Download via proxy and save locally.
	saved, err := p.Download(ctx)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`vector_art_[A-Za-z0-9]{8}\.svg$`), saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	result := p.Result()
	assert.True(t, result.Success)
	assert.Equal(t, "J1", result.JobID)
	assert.Equal(t, saved, result.ArtifactPath)

	// Run input record was persisted.
	input, err := os.ReadFile(filepath.Join(store.RunPath(result.RunID), "input.json"))
	require.NoError(t, err)
	assert.Contains(t, string(input), "cat.png")

	// The event stream walked the expected stages, with one polling attempt.
	var stages []domain.Stage
	attempts := 0
	for _, ev := range rec.all() {
		stages = append(stages, ev.Stage)
		if ev.Attempt > 0 {
			attempts++
		}
	}
	assert.Equal(t, []domain.Stage{
		domain.StageUploading,
		domain.StageReady,
		domain.StageSubmitting,
		domain.StagePolling,
		domain.StagePolling,
		domain.StageComplete,
	}, stages)
	assert.Equal(t, 1, attempts)

	// Reset returns to IDLE with nothing cached.
	p.Reset()
	assert.Equal(t, domain.StageIdle, p.Stage())
	assert.Equal(t, domain.PipelineState{}, p.State())
}
