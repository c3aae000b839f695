// Package httpconv dispatches conversion jobs to the external document
// worker over HTTP. Results arrive asynchronously via the callback
// endpoint, not on this request.
package httpconv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

// Ensure Client implements the dispatcher interface.
var _ driven.ConversionDispatcher = (*Client)(nil)

// DefaultDispatchRate throttles dispatches to the worker.
const DefaultDispatchRate = 5 // per second

// Config holds the conversion worker endpoint settings.
type Config struct {
	// BaseURL is the worker's address, e.g. http://localhost:8100.
	BaseURL string

	// CallbackURL is where the worker should post results.
	CallbackURL string

	// Timeout bounds a single dispatch request. The conversion itself
	// runs out of band.
	Timeout time.Duration

	// RatePerSecond throttles dispatch requests.
	RatePerSecond float64
}

// Client dispatches processing jobs to the conversion worker.
type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a conversion dispatch client.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = DefaultDispatchRate
	}
	return &Client{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
	}
}

// dispatchRequest is the wire format of a conversion request.
type dispatchRequest struct {
	DocumentID  string           `json:"documentId"`
	SourcePath  string           `json:"sourcePath"`
	Format      string           `json:"format"`
	Config      domain.JobConfig `json:"config"`
	CallbackURL string           `json:"callbackUrl"`
}

// dispatchError is the worker's rejection body.
type dispatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatch submits a job to the worker. A 4xx response decodes into a
// *domain.ConversionError; 5xx and transport errors stay plain errors
// so the retry policy treats them as transient.
func (c *Client) Dispatch(ctx context.Context, job domain.ProcessingJob) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(dispatchRequest{
		DocumentID:  job.DocumentID,
		SourcePath:  job.SourcePath,
		Format:      string(job.Format),
		Config:      job.Config,
		CallbackURL: c.config.CallbackURL,
	})
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	url := c.config.BaseURL + "/convert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Dispatching document %s to %s", job.DocumentID, url)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatching to worker: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var rejection dispatchError
		if err := json.NewDecoder(resp.Body).Decode(&rejection); err != nil || rejection.Code == "" {
			rejection.Code = domain.CodeInternalError
			rejection.Message = fmt.Sprintf("worker rejected dispatch with status %d", resp.StatusCode)
		}
		return &domain.ConversionError{
			Code:      rejection.Code,
			Message:   rejection.Message,
			Permanent: domain.IsPermanentCode(rejection.Code),
		}

	default:
		return fmt.Errorf("worker returned status %d", resp.StatusCode)
	}
}
