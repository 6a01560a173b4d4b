package media

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single Opus DTX frame: comfort noise at zero level.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrameDuration = 20 * time.Millisecond

// SilenceTrack is a generated audio track producing Opus silence at a steady
// 20ms cadence. It stands in for capture audio when display capture yields
// none, so the transport always negotiates an audio m-line.
type SilenceTrack struct {
	*webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	onEnded func(error)

	done      chan struct{}
	closeOnce sync.Once
}

// NewSilenceTrack creates the track and starts its sample loop.
func NewSilenceTrack() (*SilenceTrack, error) {
	inner, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		"silence-"+uuid.NewString(),
		"pulsecast",
	)
	if err != nil {
		return nil, err
	}

	t := &SilenceTrack{
		TrackLocalStaticSample: inner,
		done:                   make(chan struct{}),
	}
	go t.loop()
	return t, nil
}

func (t *SilenceTrack) loop() {
	ticker := time.NewTicker(silenceFrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			err := t.WriteSample(media.Sample{
				Data:     opusSilence,
				Duration: silenceFrameDuration,
			})
			if err != nil && !errors.Is(err, io.ErrClosedPipe) {
				t.fireEnded(err)
				return
			}
		}
	}
}

func (t *SilenceTrack) fireEnded(err error) {
	t.mu.Lock()
	handler := t.onEnded
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// OnEnded registers a handler for unexpected generator failure. A plain Close
// does not fire it.
func (t *SilenceTrack) OnEnded(f func(error)) {
	t.mu.Lock()
	t.onEnded = f
	t.mu.Unlock()
}

// Close stops the sample loop. Safe to call more than once.
func (t *SilenceTrack) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// EnsureAudio pads a track set with a synthesized silent track when it
// carries no audio, so the resulting offer always has an audio m-line.
func EnsureAudio(tracks []Track) ([]Track, error) {
	for _, t := range tracks {
		if t.Kind() == webrtc.RTPCodecTypeAudio {
			return tracks, nil
		}
	}
	silence, err := NewSilenceTrack()
	if err != nil {
		return tracks, err
	}
	return append(tracks, silence), nil
}
