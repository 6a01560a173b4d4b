package whip

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
)

// negotiationDebounce coalesces bursts of negotiationneeded signals, one per
// transceiver added, into a single negotiation cycle.
const negotiationDebounce = 50 * time.Millisecond

// localCandidateBuffer bounds the ordered candidate queue. Overflow drops the
// newest candidate, which degrades connectivity but never reorders delivery.
const localCandidateBuffer = 64

// session owns the transport for the lifetime of one publishing client:
// the peer connection, the ordered local candidate queue and the gathering
// completion signal.
type session struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	candidates chan webrtc.ICECandidateInit
	gatherDone chan struct{}
	gatherOnce sync.Once
}

// newSession builds the transport: all media bundled onto a single ICE
// transport, public STUN for address discovery, mDNS candidate gathering.
func newSession(iceServers []webrtc.ICEServer, log *slog.Logger) (*session, error) {
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{{
			URLs: []string{"stun:stun.l.google.com:19302"},
		}}
	}

	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   iceServers,
		BundlePolicy: webrtc.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		pc:         pc,
		log:        log,
		candidates: make(chan webrtc.ICECandidateInit, localCandidateBuffer),
		gatherDone: make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			s.gatherOnce.Do(func() { close(s.gatherDone) })
			return
		}
		select {
		case s.candidates <- c.ToJSON():
		default:
			s.log.Warn("local candidate queue full, dropping candidate")
		}
	})

	return s, nil
}

// onNegotiationNeeded installs the renegotiation trigger, debounced so that
// attaching several transceivers in a row yields one cycle.
func (s *session) onNegotiationNeeded(f func()) {
	debounced := debounce.New(negotiationDebounce)
	s.pc.OnNegotiationNeeded(func() {
		debounced(f)
	})
}

// flushCandidates empties the queued candidates that are already folded into
// the local description, so the trickle path only ever sees late arrivals.
func (s *session) flushCandidates() {
	for {
		select {
		case <-s.candidates:
		default:
			return
		}
	}
}

// close shuts the transport down. Safe to call regardless of negotiation
// state; pion close is idempotent.
func (s *session) close() error {
	return s.pc.Close()
}
