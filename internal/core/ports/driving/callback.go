package driving

import (
	"context"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// CallbackHandler receives conversion results from the external worker.
// It is the inbound half of the dispatch/callback pair: dispatch hands
// the job over, the callback completes the document state machine.
type CallbackHandler interface {
	// HandleCallback applies a conversion result to the document it is
	// correlated with. Returns domain.ErrNotFound for unknown documents.
	HandleCallback(ctx context.Context, payload domain.CallbackPayload) error
}
