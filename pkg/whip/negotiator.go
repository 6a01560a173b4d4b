package whip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	contentTypeSDP     = "application/sdp"
	contentTypeSDPFrag = "application/trickle-ice-sdpfrag"
)

// describer is the slice of the peer connection the negotiation engine
// drives. *webrtc.PeerConnection satisfies it; tests substitute a scripted
// implementation.
type describer interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
}

// negotiator runs the offer/answer exchange against a WHIP endpoint and
// delivers late candidates by PATCH when the endpoint supports trickle.
type negotiator struct {
	endpoint      string
	httpClient    *http.Client
	gatherTimeout time.Duration
	log           *slog.Logger

	mu       sync.Mutex
	resource string // session resource URL learned from Location
	etag     string // trickle capability marker; empty means unsupported
}

func newNegotiator(endpoint string, hc *http.Client, gatherTimeout time.Duration, log *slog.Logger) *negotiator {
	return &negotiator{
		endpoint:      endpoint,
		httpClient:    hc,
		gatherTimeout: gatherTimeout,
		log:           log,
	}
}

// Negotiate runs one full offer/answer exchange:
// offer -> bounded candidate gathering wait -> POST -> answer applied.
// flushQueued discards queued candidates already folded into the local
// description so the trickle path only carries late arrivals. Any HTTP or
// protocol failure is fatal to the session; the caller decides what to tear
// down.
func (n *negotiator) Negotiate(ctx context.Context, pc describer, gatherDone <-chan struct{}, flushQueued func()) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return &NegotiationError{Op: "offer", Err: err}
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return &NegotiationError{Op: "offer", Err: err}
	}

	// Bounded wait: gathering that never finishes must not stall the
	// exchange. On timeout we post whatever candidates made it into the
	// local description so far.
	select {
	case <-gatherDone:
	case <-time.After(n.gatherTimeout):
		n.log.Warn("candidate gathering did not complete in time, posting offer anyway",
			"timeout", n.gatherTimeout)
	case <-ctx.Done():
		return &NegotiationError{Op: "offer", Err: ctx.Err()}
	}

	// Snapshot the description after the wait: every candidate gathered so
	// far is part of it and must not be re-sent through the trickle path.
	if flushQueued != nil {
		flushQueued()
	}
	local := pc.LocalDescription()
	if local == nil {
		return &NegotiationError{Op: "offer", Err: fmt.Errorf("no local description")}
	}

	answer, err := n.postOffer(ctx, local.SDP)
	if err != nil {
		return err
	}

	if err = pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  string(answer),
	}); err != nil {
		return &NegotiationError{Op: "answer", Err: err}
	}

	n.log.Info("negotiation complete", "resource", n.Resource(), "trickle", n.TrickleSupported())
	return nil
}

// postOffer submits the offer SDP and captures the answer, the session
// resource URL and the trickle capability marker.
func (n *negotiator) postOffer(ctx context.Context, offerSDP string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBufferString(offerSDP))
	if err != nil {
		return nil, &NegotiationError{Op: "post", Err: err}
	}
	req.Header.Set("Content-Type", contentTypeSDP)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &NegotiationError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &NegotiationError{Op: "post", Status: resp.StatusCode,
			Err: fmt.Errorf("expected 201 Created, got %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NegotiationError{Op: "answer", Err: err}
	}
	if err = validateAnswer(body); err != nil {
		return nil, &NegotiationError{Op: "answer", Err: err}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		// Without a resource URL there is no way to address future
		// PATCH or DELETE calls, so this counts as a failed exchange.
		return nil, &NegotiationError{Op: "post", Err: fmt.Errorf("endpoint returned no Location header")}
	}

	resource, err := n.resolveResource(location)
	if err != nil {
		return nil, &NegotiationError{Op: "post", Err: err}
	}

	n.mu.Lock()
	n.resource = resource
	n.etag = resp.Header.Get("ETag")
	n.mu.Unlock()

	return body, nil
}

// resolveResource turns the Location header, absolute or relative, into an
// absolute session resource URL.
func (n *negotiator) resolveResource(location string) (string, error) {
	base, err := url.Parse(n.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location header %q: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Resource returns the session resource URL, or "" before a successful POST.
func (n *negotiator) Resource() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resource
}

// TrickleSupported reports whether the endpoint advertised PATCH-based
// trickle by returning an entity tag with the answer.
func (n *negotiator) TrickleSupported() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.etag != ""
}

// Trickle delivers one late candidate as an SDP fragment PATCH. Callers must
// invoke it from a single goroutine so candidates arrive in gathering order.
func (n *negotiator) Trickle(ctx context.Context, local *webrtc.SessionDescription, candidate webrtc.ICECandidateInit) error {
	n.mu.Lock()
	resource, etag := n.resource, n.etag
	n.mu.Unlock()

	if resource == "" || etag == "" {
		return &TrickleDeliveryError{Err: fmt.Errorf("endpoint does not accept trickled candidates")}
	}

	frag, err := marshalICEFragment(local, candidate)
	if err != nil {
		return &TrickleDeliveryError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, resource, bytes.NewBufferString(frag))
	if err != nil {
		return &TrickleDeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", contentTypeSDPFrag)
	req.Header.Set("If-Match", etag)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &TrickleDeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &TrickleDeliveryError{Status: resp.StatusCode,
			Err: fmt.Errorf("candidate PATCH rejected: %s", resp.Status)}
	}
	return nil
}

// Teardown notifies the endpoint that the session is over. Best effort: the
// caller releases local resources no matter what this returns.
func (n *negotiator) Teardown(ctx context.Context) error {
	resource := n.Resource()
	if resource == "" {
		// Negotiation never reached the endpoint; nothing to delete.
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return err
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("session DELETE rejected: %s", resp.Status)
	}
	return nil
}
