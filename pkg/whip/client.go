// Package whip implements the client side of the WebRTC-HTTP Ingestion
// Protocol: local media acquisition, the HTTP offer/answer exchange with
// trickle-ICE delivery, and idempotent session teardown.
package whip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/pulsecast/pulsecast/pkg/concurrency"
	"github.com/pulsecast/pulsecast/pkg/media"
)

const (
	defaultGatherTimeout = 2 * time.Second
	defaultHTTPTimeout   = 15 * time.Second
	teardownTimeout      = 5 * time.Second
)

// Config describes one publishing session.
type Config struct {
	// Endpoint is the WHIP URL the offer is POSTed to. Immutable.
	Endpoint string

	// Source selects the capture pipeline.
	Source media.SourceKind

	// Acquirer produces the local stream. Defaults to the device-backed
	// acquirer; tests inject fakes.
	Acquirer media.Acquirer

	// Surface receives the local stream for preview as soon as it exists,
	// independent of negotiation progress. Optional.
	Surface media.Surface

	// HTTPClient used for the signaling exchange. Optional.
	HTTPClient *http.Client

	// ICEServers overrides the default public STUN resolver. Optional.
	ICEServers []webrtc.ICEServer

	// GatherTimeout bounds the wait for ICE gathering before the offer is
	// posted. Zero means the default.
	GatherTimeout time.Duration

	// OnScreenLive fires when a screen share starts or stops being live.
	OnScreenLive func(live bool)

	// OnStreamStopped fires exactly once when the local stream is torn
	// down, scoped by source kind.
	OnStreamStopped func(media.SourceKind)

	// OnAudioLevel receives measured audio levels (0..1) for audio
	// sessions.
	OnAudioLevel func(float64)

	// OnStateChange observes session lifecycle transitions.
	OnStateChange func(State)
}

// Client publishes one local media stream to a WHIP endpoint. A client is
// single use: once disconnected it cannot be restarted.
type Client struct {
	id  string
	cfg Config
	log *slog.Logger

	sess    *session
	neg     *negotiator
	machine *stateMachine
	guard   *concurrency.Guard

	mu                 sync.Mutex
	stream             *media.Stream
	negotiationPending bool
	lastErr            error
	runCtx             context.Context

	connected     chan struct{}
	connectedOnce sync.Once
	done          chan struct{}
	closeOnce     sync.Once
}

// New wires a client. Nothing runs until Start.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("whip: endpoint is required")
	}
	if !cfg.Source.Valid() {
		return nil, fmt.Errorf("whip: invalid source kind %q", cfg.Source)
	}
	if cfg.Acquirer == nil {
		acquirer, err := media.NewDeviceAcquirer()
		if err != nil {
			return nil, fmt.Errorf("whip: %w", err)
		}
		cfg.Acquirer = acquirer
	}
	if cfg.Surface == nil {
		cfg.Surface = media.NopSurface{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = defaultGatherTimeout
	}

	id := uuid.NewString()
	log := slog.Default().With("component", "whip", "session_id", id)

	sess, err := newSession(cfg.ICEServers, log)
	if err != nil {
		return nil, fmt.Errorf("whip: failed to create transport: %w", err)
	}

	c := &Client{
		id:        id,
		cfg:       cfg,
		log:       log,
		sess:      sess,
		neg:       newNegotiator(cfg.Endpoint, cfg.HTTPClient, cfg.GatherTimeout, log),
		machine:   newStateMachine(cfg.OnStateChange),
		guard:     concurrency.NewGuard(),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}

	sess.onNegotiationNeeded(c.negotiationNeeded)
	return c, nil
}

// Start begins asynchronous media acquisition and returns immediately.
// The session advances on its own: acquisition, negotiation, connected.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	if !c.machine.transition(StateAcquiringMedia) {
		return ErrClosed
	}
	go c.run(ctx)
	return nil
}

func (c *Client) run(ctx context.Context) {
	stream, err := c.cfg.Acquirer.Acquire(ctx, c.cfg.Source)
	if err != nil {
		c.fail(&MediaAcquisitionError{Source: c.cfg.Source, Err: err})
		return
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	// Teardown may have raced the acquisition; if so the stream was never
	// adopted and must be stopped here.
	if c.machine.State() == StateDisconnected {
		stream.Close()
		return
	}

	for _, track := range stream.Tracks() {
		if _, err = c.sess.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		}); err != nil {
			c.fail(&MediaAcquisitionError{Source: c.cfg.Source,
				Err: fmt.Errorf("failed to attach track %s: %w", track.ID(), err)})
			return
		}

		// Hardware loss is terminal for the session, not retryable.
		track.OnEnded(func(endErr error) {
			c.log.Warn("local track ended, tearing session down", "error", endErr)
			c.DisconnectStream()
		})
	}

	c.cfg.Surface.Attach(stream)
	c.log.Info("local stream acquired",
		"source", c.cfg.Source,
		"audio_tracks", len(stream.AudioTracks()),
		"video_tracks", len(stream.VideoTracks()))

	if c.cfg.Source == media.SourceScreen && c.cfg.OnScreenLive != nil {
		c.cfg.OnScreenLive(true)
	}
	if c.cfg.OnAudioLevel != nil {
		go c.forwardLevels(stream)
	}
}

func (c *Client) forwardLevels(stream *media.Stream) {
	for level := range stream.Levels() {
		c.cfg.OnAudioLevel(level)
	}
}

// negotiationNeeded is the debounced renegotiation trigger. Negotiation is
// non-reentrant: a signal arriving mid-cycle is queued as a pending flag and
// replayed once the current cycle finishes, never interleaved.
func (c *Client) negotiationNeeded() {
	for {
		err := c.guard.Execute(c.negotiate)
		if errors.Is(err, concurrency.ErrBusy) {
			c.mu.Lock()
			c.negotiationPending = true
			c.mu.Unlock()
			return
		}
		if errors.Is(err, ErrClosed) {
			// Teardown won the race; nothing left to negotiate.
			return
		}
		if err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		again := c.negotiationPending
		c.negotiationPending = false
		c.mu.Unlock()
		if !again {
			return
		}
	}
}

func (c *Client) negotiate() error {
	switch c.machine.State() {
	case StateDisconnected:
		return ErrClosed
	case StateConnected:
		// WHIP sessions negotiate once; late triggers are no-ops.
		c.log.Debug("ignoring renegotiation signal on connected session")
		return nil
	}

	if !c.machine.transition(StateNegotiating) {
		return ErrClosed
	}

	ctx := c.negotiateContext()
	if err := c.neg.Negotiate(ctx, c.sess.pc, c.sess.gatherDone, c.sess.flushCandidates); err != nil {
		return err
	}

	c.machine.transition(StateConnected)
	c.connectedOnce.Do(func() { close(c.connected) })
	go c.trickleLoop(ctx)
	return nil
}

func (c *Client) negotiateContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

// trickleLoop delivers candidates gathered after the offer/answer exchange.
// Single consumer, so delivery preserves gathering order. When the endpoint
// gave no capability marker, late candidates are drained and dropped; the
// engine never PATCHes a server that did not opt in.
func (c *Client) trickleLoop(ctx context.Context) {
	trickle := c.neg.TrickleSupported()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case candidate := <-c.sess.candidates:
			if !trickle {
				continue
			}
			if err := c.neg.Trickle(ctx, c.sess.pc.LocalDescription(), candidate); err != nil {
				// Session stays usable; connectivity may just be
				// poorer than it could have been.
				c.log.Warn("failed to deliver late candidate", "error", err)
			}
		}
	}
}

// fail records the session's fatal error and tears everything down.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	c.log.Error("session failed", "error", err)
	c.DisconnectStream()
}

// DisconnectStream tears the session down: endpoint DELETE first (best
// effort), then transport close, then track stop, then surface detach, then
// the stopped event. Safe to call any number of times from any state; only
// the first call does anything.
func (c *Client) DisconnectStream() {
	c.closeOnce.Do(func() {
		c.machine.transition(StateDisconnected)

		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := c.neg.Teardown(ctx); err != nil {
			c.log.Warn("endpoint teardown failed, releasing local resources anyway", "error", err)
		}

		if err := c.sess.close(); err != nil {
			c.log.Warn("transport close failed", "error", err)
		}

		c.mu.Lock()
		stream := c.stream
		c.mu.Unlock()
		if stream != nil {
			if err := stream.Close(); err != nil {
				c.log.Warn("failed to stop local tracks", "error", err)
			}
		}

		c.cfg.Surface.Detach()

		if c.cfg.Source == media.SourceScreen && c.cfg.OnScreenLive != nil {
			c.cfg.OnScreenLive(false)
		}
		if c.cfg.OnStreamStopped != nil {
			c.cfg.OnStreamStopped(c.cfg.Source)
		}

		c.log.Info("session disconnected")
		close(c.done)
	})
}

// ID returns the client's session identifier, used in logs.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() State { return c.machine.State() }

// Connected is closed once the offer/answer exchange completes.
func (c *Client) Connected() <-chan struct{} { return c.connected }

// Done is closed when the session reaches its terminal state.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the fatal error that ended the session, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
