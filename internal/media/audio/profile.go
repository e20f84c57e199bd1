package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// MaxAmplitude is the full-scale value of a signed 16-bit sample.
const MaxAmplitude = 32768.0

// AnalysisSampleRate is the rate clips are decoded at for silence detection.
const AnalysisSampleRate = 16000

// Profile summarizes a mono signal as the sum of squared samples of every
// whole millisecond. Window RMS over any millisecond range is answered from
// cumulative sums without keeping the samples.
type Profile struct {
	samplesPerMs int
	cumulative   []uint64
}

// NewProfile builds a profile from per-millisecond energies.
func NewProfile(samplesPerMs int, energy []uint64) Profile {
	if samplesPerMs <= 0 {
		samplesPerMs = 1
	}
	cumulative := make([]uint64, len(energy)+1)
	for i, e := range energy {
		cumulative[i+1] = cumulative[i] + e
	}
	return Profile{samplesPerMs: samplesPerMs, cumulative: cumulative}
}

// ReadProfile consumes signed 16-bit little-endian mono PCM from r. A trailing
// partial millisecond is dropped.
func ReadProfile(r io.Reader, sampleRate int) (Profile, error) {
	if sampleRate < 1000 {
		return Profile{}, fmt.Errorf("read pcm: sample rate %d too low", sampleRate)
	}
	samplesPerMs := sampleRate / 1000

	reader := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 32*1024)
	cumulative := []uint64{0}
	var (
		acc      uint64
		inBucket int
		pending  int
	)
	for {
		n, err := reader.Read(buf[pending:])
		n += pending
		i := 0
		for ; i+1 < n; i += 2 {
			sample := int64(int16(uint16(buf[i]) | uint16(buf[i+1])<<8))
			acc += uint64(sample * sample)
			inBucket++
			if inBucket == samplesPerMs {
				cumulative = append(cumulative, cumulative[len(cumulative)-1]+acc)
				acc, inBucket = 0, 0
			}
		}
		pending = n - i
		if pending == 1 {
			buf[0] = buf[i]
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Profile{}, fmt.Errorf("read pcm: %w", err)
		}
	}
	return Profile{samplesPerMs: samplesPerMs, cumulative: cumulative}, nil
}

// Len returns the number of whole milliseconds covered.
func (p Profile) Len() int {
	if len(p.cumulative) == 0 {
		return 0
	}
	return len(p.cumulative) - 1
}

// Duration returns the covered length.
func (p Profile) Duration() time.Duration {
	return time.Duration(p.Len()) * time.Millisecond
}

// RMS returns the root-mean-square amplitude over [startMs, endMs).
func (p Profile) RMS(startMs, endMs int) float64 {
	startMs = max(startMs, 0)
	endMs = min(endMs, p.Len())
	if endMs <= startMs {
		return 0
	}
	sum := p.cumulative[endMs] - p.cumulative[startMs]
	samples := float64((endMs - startMs) * p.samplesPerMs)
	return math.Sqrt(float64(sum) / samples)
}

// DBFS returns the window loudness relative to full scale; silence is -Inf.
func (p Profile) DBFS(startMs, endMs int) float64 {
	rms := p.RMS(startMs, endMs)
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/MaxAmplitude)
}
