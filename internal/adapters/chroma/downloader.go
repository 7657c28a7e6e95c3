package chroma

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"vectorart/internal/core/domain"
	"vectorart/internal/core/ports"
)

// Download fetches the generated artifact. The proxy endpoint is tried
// first; a direct cross-origin fetch with a cache-busting parameter is the
// fallback, attempted only when the proxy strategy failed. Both failing is a
// terminal DownloadError.
func (c *Client) Download(ctx context.Context, resultURL string) (*ports.Artifact, error) {
	proxyURL := c.cfg.APIBase + "/download-proxy?url=" + url.QueryEscape(resultURL)
	artifact, proxyErr := c.fetchArtifact(ctx, proxyURL)
	if proxyErr == nil {
		return artifact, nil
	}
	c.logger.Warn().Err(proxyErr).Msg("proxy download failed, trying direct")

	directURL := fmt.Sprintf("%s?t=%d", resultURL, time.Now().UnixMilli())
	artifact, directErr := c.fetchArtifact(ctx, directURL)
	if directErr == nil {
		return artifact, nil
	}

	return nil, &domain.DownloadError{ProxyErr: proxyErr, DirectErr: directErr}
}

func (c *Client) fetchArtifact(ctx context.Context, u string) (*ports.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if !okStatus(resp.StatusCode) {
		resp.Body.Close()
		return nil, fmt.Errorf("status %s", resp.Status)
	}

	return &ports.Artifact{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
