package whip

import (
	"errors"
	"fmt"

	"github.com/pulsecast/pulsecast/pkg/media"
)

// ErrClosed is returned by operations on a client that has already reached
// the disconnected state.
var ErrClosed = errors.New("whip: client is disconnected")

// MediaAcquisitionError reports that local capture could not be obtained
// (permission denied, no device). The session is torn down without ever
// contacting the signaling endpoint.
type MediaAcquisitionError struct {
	Source media.SourceKind
	Err    error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("whip: %s acquisition failed: %v", e.Source, e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// NegotiationError reports a fatal failure of the offer/answer exchange:
// a non-201 response, a missing Location header, or a malformed answer.
// Negotiation is not retried automatically.
type NegotiationError struct {
	Op     string // "offer", "answer", "post"
	Status int    // HTTP status when the server rejected us, else 0
	Err    error
}

func (e *NegotiationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("whip: negotiation failed during %s: endpoint returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("whip: negotiation failed during %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// TrickleDeliveryError reports a failed candidate PATCH. Non-fatal: the
// session stays up with a possibly incomplete candidate set.
type TrickleDeliveryError struct {
	Status int
	Err    error
}

func (e *TrickleDeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("whip: candidate delivery failed: endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("whip: candidate delivery failed: %v", e.Err)
}

func (e *TrickleDeliveryError) Unwrap() error { return e.Err }
