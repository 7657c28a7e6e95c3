package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"vectorart/internal/core/domain"
)

type submitRequest struct {
	Model           string `json:"model"`
	ToolType        string `json:"toolType"`
	EffectID        string `json:"effectId"`
	ImageURL        string `json:"imageUrl"`
	UserID          string `json:"userId"`
	RemoveWatermark bool   `json:"removeWatermark"`
	IsPrivate       bool   `json:"isPrivate"`
}

// Submit posts a transformation request for the given source image and
// returns the created job. A failure here is terminal for the generation
// attempt; there is no retry.
func (c *Client) Submit(ctx context.Context, imageURL string) (*domain.GenerationJob, error) {
	body, err := json.Marshal(submitRequest{
		Model:           modelID,
		ToolType:        toolTypeID,
		EffectID:        effectID,
		ImageURL:        imageURL,
		UserID:          c.cfg.UserID,
		RemoveWatermark: true,
		IsPrivate:       true,
	})
	if err != nil {
		return nil, &domain.SubmitError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/image-gen", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.SubmitError{Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.SubmitError{Err: err}
	}
	defer resp.Body.Close()

	if !okStatus(resp.StatusCode) {
		return nil, &domain.SubmitError{Err: fmt.Errorf("status %s", resp.Status)}
	}

	var job domain.GenerationJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, &domain.SubmitError{Err: err}
	}

	c.logger.Info().Str("job_id", job.JobID).Str("status", string(job.Status)).Msg("job submitted")
	return &job, nil
}
