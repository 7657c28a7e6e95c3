package chroma

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vectorart/internal/core/domain"
	"vectorart/internal/nanoid"
)

// Upload stores the file in object storage via a signed URL and returns the
// public retrieval URL. The object name is a fresh 21-character identifier
// plus the source file's extension. No retries: a single failure aborts the
// upload and the caller decides whether the user re-selects.
func (c *Client) Upload(ctx context.Context, file domain.SelectedFile) (string, error) {
	fileName := nanoid.Generate(nanoid.DefaultLength) + "." + fileExtension(file.Name)

	signedURL, err := c.fetchSignedURL(ctx, fileName)
	if err != nil {
		return "", &domain.UploadError{Reason: domain.UploadReasonSignedURL, Err: err}
	}
	c.logger.Debug().Str("file", fileName).Msg("got signed URL")

	if err := c.putBytes(ctx, signedURL, file); err != nil {
		return "", &domain.UploadError{Reason: domain.UploadReasonPut, Err: err}
	}

	// The object is trusted to be retrievable on PUT success alone; there is
	// no confirmation fetch.
	publicURL := c.cfg.ContentBase + "/" + fileName
	c.logger.Info().Str("url", publicURL).Msg("uploaded source image")
	return publicURL, nil
}

func (c *Client) fetchSignedURL(ctx context.Context, fileName string) (string, error) {
	u := c.cfg.APIBase + "/get-emd-upload-url?fileName=" + url.QueryEscape(fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !okStatus(resp.StatusCode) {
		return "", fmt.Errorf("status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) putBytes(ctx context.Context, signedURL string, file domain.SelectedFile) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(file.Bytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", file.MIME)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !okStatus(resp.StatusCode) {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

// fileExtension returns the trailing dot-segment of name, defaulting to jpg
// when there is none.
func fileExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "jpg"
	}
	return name[i+1:]
}
