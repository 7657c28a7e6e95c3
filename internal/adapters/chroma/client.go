// Package chroma implements the remote generation API: signed-URL uploads,
// job submission, status polling and artifact download.
package chroma

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultAPIBase     = "https://api.chromastudio.ai"
	defaultContentBase = "https://contents.maxstudio.ai"
	defaultUserID      = "DObRu1vyStbUynoQmTcHBlhs55z2"

	// Fixed parameters identifying the photo-to-vector-art transform.
	modelID    = "image-effects"
	toolTypeID = "image-effects"
	effectID   = "photoToVectorArt"

	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 60
	defaultHTTPTimeout  = 5 * time.Minute

	acceptHeader = "application/json, text/plain, */*"
)

// Config parameterizes the API client. Zero fields take defaults.
type Config struct {
	APIBase      string
	ContentBase  string
	UserID       string
	PollInterval time.Duration
	MaxPolls     int
	HTTPTimeout  time.Duration
}

// Client talks to the generation backend. It implements ports.Uploader,
// ports.Submitter, ports.Poller and ports.Downloader.
type Client struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// New creates a Client, filling unset config fields with defaults.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.ContentBase == "" {
		cfg.ContentBase = defaultContentBase
	}
	if cfg.UserID == "" {
		cfg.UserID = defaultUserID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
	}
}

func okStatus(code int) bool {
	return code >= 200 && code < 300
}
