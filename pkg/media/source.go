// Package media acquires local capture streams (camera, screen, microphone)
// and exposes them as WebRTC-attachable tracks.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// SourceKind selects which capture pipeline a stream is built from.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceScreen SourceKind = "screen"
	SourceAudio  SourceKind = "audio"
)

// Valid reports whether k names a known capture source.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceCamera, SourceScreen, SourceAudio:
		return true
	}
	return false
}

func (k SourceKind) String() string { return string(k) }

// ParseSourceKind converts a user-supplied selector string into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown source kind %q (want camera, screen or audio)", s)
	}
	return k, nil
}

// Track is a local media track that can be bound to a peer connection.
// mediadevices tracks and the synthesized silence track both satisfy it.
type Track interface {
	webrtc.TrackLocal

	// OnEnded registers a handler invoked when the track stops producing
	// media unexpectedly (device unplugged, capture revoked).
	OnEnded(func(error))

	// Close stops the underlying capture. Safe to call more than once.
	Close() error
}

// Stream is one acquired capture session: an ordered, immutable set of live
// tracks plus an audio-level feed. The whip client owns the stream; a Surface
// only borrows it for preview.
type Stream struct {
	kind   SourceKind
	tracks []Track

	levels    chan float64
	closeOnce sync.Once
}

// NewStream builds a stream over the given tracks. The track set is fixed for
// the lifetime of the stream.
func NewStream(kind SourceKind, tracks ...Track) *Stream {
	return &Stream{
		kind:   kind,
		tracks: tracks,
		levels: make(chan float64, 16),
	}
}

// Kind returns the source the stream was acquired from.
func (s *Stream) Kind() SourceKind { return s.kind }

// Tracks returns the stream's tracks in acquisition order.
func (s *Stream) Tracks() []Track { return s.tracks }

// AudioTracks returns the audio subset of the track set.
func (s *Stream) AudioTracks() []Track { return s.tracksOfKind(webrtc.RTPCodecTypeAudio) }

// VideoTracks returns the video subset of the track set.
func (s *Stream) VideoTracks() []Track { return s.tracksOfKind(webrtc.RTPCodecTypeVideo) }

func (s *Stream) tracksOfKind(kind webrtc.RTPCodecType) []Track {
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// PublishLevel reports a measured audio level (0..1) to observers.
// It never blocks; levels are dropped if nobody is draining them.
func (s *Stream) PublishLevel(v float64) {
	select {
	case s.levels <- v:
	default:
	}
}

// Levels returns the audio-level feed. The channel is closed when the stream
// is closed.
func (s *Stream) Levels() <-chan float64 { return s.levels }

// Close stops every track. Idempotent; the first close wins.
func (s *Stream) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		for _, t := range s.tracks {
			if err := t.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		close(s.levels)
	})
	return firstErr
}

// Acquirer produces a live stream for a source kind. The device-backed
// implementation lives in devices.go; tests substitute fakes so no hardware
// is needed to exercise the session logic.
type Acquirer interface {
	Acquire(ctx context.Context, kind SourceKind) (*Stream, error)
}

// Surface is a consumer-only preview target for the local stream, the Go
// analog of binding a stream to a video element. Implementations must not
// stop or mutate the stream's tracks.
type Surface interface {
	Attach(*Stream)
	Detach()
}

// NopSurface is a Surface that ignores the stream. Used when the caller has
// no preview to drive.
type NopSurface struct{}

func (NopSurface) Attach(*Stream) {}
func (NopSurface) Detach()        {}
