package chroma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vectorart/internal/core/domain"
)

// Poll queries job status at a fixed interval until the job reaches a
// terminal state or the attempt budget runs out. onProgress, if non-nil,
// receives the 1-based attempt number after each non-terminal response.
//
// A non-2xx status check fails the whole run immediately; flaky requests are
// not distinguished from dead jobs.
func (c *Client) Poll(ctx context.Context, jobID string, onProgress func(attempt int)) (*domain.GenerationJob, error) {
	statusURL := fmt.Sprintf("%s/image-gen/%s/%s/status", c.cfg.APIBase, c.cfg.UserID, jobID)

	for polls := 0; polls < c.cfg.MaxPolls; polls++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job, err := c.fetchStatus(ctx, statusURL)
		if err != nil {
			return nil, err
		}
		c.logger.Debug().Int("poll", polls+1).Str("status", string(job.Status)).Msg("job status")

		switch job.Status {
		case domain.StatusCompleted:
			return job, nil
		case domain.StatusFailed, domain.StatusError:
			msg := job.ErrorMessage
			if msg == "" {
				msg = "Job processing failed"
			}
			return nil, &domain.JobError{Reason: domain.JobReasonStatus, Message: msg}
		}

		if onProgress != nil {
			onProgress(polls + 1)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}

	return nil, &domain.JobError{Reason: domain.JobReasonTimeout, Message: "Job timed out"}
}

func (c *Client) fetchStatus(ctx context.Context, statusURL string) (*domain.GenerationJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, &domain.JobError{Reason: domain.JobReasonHTTP, Message: err.Error()}
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.JobError{Reason: domain.JobReasonHTTP, Message: fmt.Sprintf("failed to check status: %v", err)}
	}
	defer resp.Body.Close()

	if !okStatus(resp.StatusCode) {
		return nil, &domain.JobError{Reason: domain.JobReasonHTTP, Message: fmt.Sprintf("failed to check status: %s", resp.Status)}
	}

	var job domain.GenerationJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, &domain.JobError{Reason: domain.JobReasonHTTP, Message: fmt.Sprintf("failed to decode status: %v", err)}
	}
	return &job, nil
}
