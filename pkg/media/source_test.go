package media

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTrack is a sample track with the lifecycle methods tracked, enough to
// exercise stream bookkeeping without capture hardware.
type stubTrack struct {
	*webrtc.TrackLocalStaticSample

	mu     sync.Mutex
	closed int
}

func newStubTrack(t *testing.T, mimeType, id string) *stubTrack {
	t.Helper()
	base, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, id, "media-test")
	require.NoError(t, err)
	return &stubTrack{TrackLocalStaticSample: base}
}

func (s *stubTrack) OnEnded(func(error)) {}

func (s *stubTrack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *stubTrack) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestParseSourceKind(t *testing.T) {
	for _, valid := range []string{"camera", "screen", "audio"} {
		k, err := ParseSourceKind(valid)
		require.NoError(t, err)
		assert.True(t, k.Valid())
		assert.Equal(t, valid, k.String())
	}

	_, err := ParseSourceKind("hologram")
	assert.Error(t, err)
	_, err = ParseSourceKind("")
	assert.Error(t, err)
}

func TestStreamTrackSplit(t *testing.T) {
	video := newStubTrack(t, webrtc.MimeTypeVP8, "video")
	audio := newStubTrack(t, webrtc.MimeTypeOpus, "audio")

	s := NewStream(SourceScreen, video, audio)
	assert.Equal(t, SourceScreen, s.Kind())
	assert.Len(t, s.Tracks(), 2)

	require.Len(t, s.VideoTracks(), 1)
	assert.Equal(t, webrtc.RTPCodecTypeVideo, s.VideoTracks()[0].Kind())
	require.Len(t, s.AudioTracks(), 1)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, s.AudioTracks()[0].Kind())
}

func TestStreamCloseStopsEveryTrackOnce(t *testing.T) {
	video := newStubTrack(t, webrtc.MimeTypeVP8, "video")
	audio := newStubTrack(t, webrtc.MimeTypeOpus, "audio")

	s := NewStream(SourceCamera, video, audio)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, 1, video.closeCount())
	assert.Equal(t, 1, audio.closeCount())
}

func TestStreamLevelsNeverBlock(t *testing.T) {
	s := NewStream(SourceAudio, newStubTrack(t, webrtc.MimeTypeOpus, "audio"))

	// Nobody is draining; publishing far past the buffer must not block.
	for i := 0; i < 100; i++ {
		s.PublishLevel(0.5)
	}

	assert.InDelta(t, 0.5, <-s.Levels(), 0.001)
	require.NoError(t, s.Close())

	// Drain until closed: the feed must terminate for range consumers.
	for range s.Levels() {
	}
}
