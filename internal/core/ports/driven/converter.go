package driven

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// ConversionDispatcher hands processing jobs to the external conversion
// worker. Dispatch returns once the worker acknowledges receipt (HTTP
// 2xx); the conversion result arrives later through the callback path,
// never as the dispatch response.
//
// A returned *domain.ConversionError with Permanent set signals a
// content error that must not be retried. Any other error is transient
// and left to the queue's retry policy.
type ConversionDispatcher interface {
	Dispatch(ctx context.Context, job domain.ProcessingJob) error
}
