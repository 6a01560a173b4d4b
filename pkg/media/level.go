package media

import (
	"math"
	"time"

	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"
)

// MonitorLevel reads raw audio chunks from r, computes a normalized RMS level
// per chunk and reports the loudest level seen in each period through fn.
// It returns when the reader fails, which happens once the track is closed.
func MonitorLevel(r audio.Reader, period time.Duration, fn func(float64)) {
	var peak float64
	lastReport := time.Now()

	for {
		chunk, release, err := r.Read()
		if err != nil {
			return
		}

		if l := chunkLevel(chunk); l > peak {
			peak = l
		}
		release()

		if time.Since(lastReport) >= period {
			fn(peak)
			peak = 0
			lastReport = time.Now()
		}
	}
}

// chunkLevel computes the RMS of one chunk, normalized to 0..1.
func chunkLevel(chunk wave.Audio) float64 {
	info := chunk.ChunkInfo()
	if info.Len == 0 || info.Channels == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < info.Len; i++ {
		for ch := 0; ch < info.Channels; ch++ {
			v := float64(chunk.At(i, ch).Int()) / float64(math.MaxInt64)
			sum += v * v
		}
	}
	return math.Sqrt(sum / float64(info.Len*info.Channels))
}
