package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"

	// Register the capture adapters. Without these GetUserMedia and
	// GetDisplayMedia report no available devices.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
)

const (
	cameraWidth  = 1280
	cameraHeight = 720

	screenWidth  = 1920
	screenHeight = 1080

	audioSampleRate  = 48000
	audioChannels    = 1
	levelMeterPeriod = 100 * time.Millisecond

	videoBitRate = 1_500_000
)

// DeviceAcquirer captures from real devices through pion/mediadevices.
type DeviceAcquirer struct {
	codecs *mediadevices.CodecSelector
	log    *slog.Logger
}

// NewDeviceAcquirer builds an acquirer encoding video as VP8 and audio as Opus.
func NewDeviceAcquirer() (*DeviceAcquirer, error) {
	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("failed to init VP8 encoder: %w", err)
	}
	vp8Params.BitRate = videoBitRate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("failed to init Opus encoder: %w", err)
	}

	return &DeviceAcquirer{
		codecs: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vp8Params),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		log: slog.Default().With("component", "media"),
	}, nil
}

// Acquire opens the capture pipeline for the given source kind and returns a
// live stream. Device access may block on user permission; the context only
// gates entry, an in-progress device open is not interruptible.
func (a *DeviceAcquirer) Acquire(ctx context.Context, kind SourceKind) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case SourceCamera:
		return a.acquireCamera()
	case SourceScreen:
		return a.acquireScreen()
	case SourceAudio:
		return a.acquireAudio()
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func (a *DeviceAcquirer) acquireCamera() (*Stream, error) {
	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormat(frame.FormatI420)
			c.Width = prop.Int(cameraWidth)
			c.Height = prop.Int(cameraHeight)
		},
		Codec: a.codecs,
	})
	if err != nil {
		return nil, fmt.Errorf("camera capture failed: %w", err)
	}

	a.log.Info("camera capture opened", "width", cameraWidth, "height", cameraHeight)
	return NewStream(SourceCamera, collectTracks(ms)...), nil
}

func (a *DeviceAcquirer) acquireScreen() (*Stream, error) {
	ms, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(screenWidth)
			c.Height = prop.Int(screenHeight)
		},
		Codec: a.codecs,
	})
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}

	// Display capture rarely carries audio. Always negotiate an audio
	// m-line anyway: some servers reject offers with video only, so pad
	// the track set with generated silence.
	tracks, err := EnsureAudio(collectTracks(ms))
	if err != nil {
		closeAll(tracks)
		return nil, fmt.Errorf("failed to synthesize silent audio: %w", err)
	}
	if len(ms.GetAudioTracks()) == 0 {
		a.log.Info("screen capture has no audio, added silent track")
	}

	a.log.Info("screen capture opened", "width", screenWidth, "height", screenHeight)
	return NewStream(SourceScreen, tracks...), nil
}

func (a *DeviceAcquirer) acquireAudio() (*Stream, error) {
	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(audioSampleRate)
			c.ChannelCount = prop.Int(audioChannels)
		},
		Codec: a.codecs,
	})
	if err != nil {
		return nil, fmt.Errorf("microphone capture failed: %w", err)
	}

	stream := NewStream(SourceAudio, collectTracks(ms)...)

	// Feed the level meter from the raw capture. The monitor exits on its
	// own once the track is closed and its reader starts failing.
	for _, t := range ms.GetAudioTracks() {
		if at, ok := t.(*mediadevices.AudioTrack); ok {
			go MonitorLevel(at.NewReader(false), levelMeterPeriod, stream.PublishLevel)
		}
	}

	a.log.Info("microphone capture opened", "sample_rate", audioSampleRate)
	return stream, nil
}

// collectTracks adapts a mediadevices stream to the package track set,
// video first so transceiver order is deterministic.
func collectTracks(ms mediadevices.MediaStream) []Track {
	var tracks []Track
	for _, t := range ms.GetVideoTracks() {
		tracks = append(tracks, t)
	}
	for _, t := range ms.GetAudioTracks() {
		tracks = append(tracks, t)
	}
	return tracks
}

func closeAll(tracks []Track) {
	for _, t := range tracks {
		if err := t.Close(); err != nil {
			slog.Warn("failed to close track", "id", t.ID(), "error", err)
		}
	}
}
