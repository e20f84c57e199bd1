package segment

import (
	"math"
	"time"

	"podscribe/internal/media/audio"
)

// Strategy records how a clip was divided.
type Strategy string

const (
	StrategyPassThrough Strategy = "pass_through"
	StrategySilence     Strategy = "silence"
	StrategyFixed       Strategy = "fixed"
)

// Config controls segmentation.
type Config struct {
	MaxChunk           time.Duration
	MinSilence         time.Duration
	SilenceThresholdDB float64
	Padding            time.Duration
	Format             string
}

// DefaultConfig returns ten-minute chunks cut at one-second pauses quieter
// than -40 dBFS, keeping half a second of silence around each piece.
func DefaultConfig() Config {
	return Config{
		MaxChunk:           10 * time.Minute,
		MinSilence:         time.Second,
		SilenceThresholdDB: -40,
		Padding:            500 * time.Millisecond,
		Format:             "mp3",
	}
}

// Range is a span on the source timeline.
type Range struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the span length.
func (r Range) Duration() time.Duration { return r.End - r.Start }

// DetectSilence returns millisecond [start, end) spans where every window of
// minSilenceMs is at or below thresholdDB. Windows closer than minSilenceMs
// apart are merged into one span.
func DetectSilence(p audio.Profile, minSilenceMs int, thresholdDB float64) [][2]int {
	length := p.Len()
	if minSilenceMs <= 0 || length < minSilenceMs {
		return nil
	}
	threshold := math.Pow(10, thresholdDB/20) * audio.MaxAmplitude

	var (
		ranges  [][2]int
		started bool
		first   int
		prev    int
	)
	for i := 0; i <= length-minSilenceMs; i++ {
		if p.RMS(i, i+minSilenceMs) > threshold {
			continue
		}
		if !started {
			started, first, prev = true, i, i
			continue
		}
		continuous := i == prev+1
		hasGap := i > prev+minSilenceMs
		if !continuous && hasGap {
			ranges = append(ranges, [2]int{first, prev + minSilenceMs})
			first = i
		}
		prev = i
	}
	if started {
		ranges = append(ranges, [2]int{first, prev + minSilenceMs})
	}
	return ranges
}

// DetectNonsilent returns the complement of DetectSilence. A clip without
// silence yields one span covering everything; an entirely silent clip
// yields none.
func DetectNonsilent(p audio.Profile, minSilenceMs int, thresholdDB float64) [][2]int {
	length := p.Len()
	silent := DetectSilence(p, minSilenceMs, thresholdDB)
	if len(silent) == 0 {
		return [][2]int{{0, length}}
	}
	if silent[0][0] == 0 && silent[0][1] == length {
		return nil
	}

	var ranges [][2]int
	prevEnd := 0
	for _, r := range silent {
		ranges = append(ranges, [2]int{prevEnd, r[0]})
		prevEnd = r[1]
	}
	if prevEnd != length {
		ranges = append(ranges, [2]int{prevEnd, length})
	}
	if ranges[0] == [2]int{0, 0} {
		ranges = ranges[1:]
	}
	return ranges
}

// SilencePlan pads each audible span by cfg.Padding on both sides, splits
// overlapping neighbours at their midpoint, and clamps to the profile.
func SilencePlan(p audio.Profile, cfg Config) []Range {
	minMs := int(cfg.MinSilence / time.Millisecond)
	keepMs := int(cfg.Padding / time.Millisecond)
	spans := DetectNonsilent(p, minMs, cfg.SilenceThresholdDB)
	if len(spans) == 0 {
		return nil
	}

	padded := make([][2]int, len(spans))
	for i, s := range spans {
		padded[i] = [2]int{s[0] - keepMs, s[1] + keepMs}
	}
	for i := 0; i+1 < len(padded); i++ {
		lastEnd, nextStart := padded[i][1], padded[i+1][0]
		if nextStart < lastEnd {
			mid := floorDiv(lastEnd+nextStart, 2)
			padded[i][1] = mid
			padded[i+1][0] = mid
		}
	}

	length := p.Len()
	ranges := make([]Range, 0, len(padded))
	for _, s := range padded {
		start := max(s[0], 0)
		end := min(s[1], length)
		if end <= start {
			continue
		}
		ranges = append(ranges, Range{Start: ms(start), End: ms(end)})
	}
	return ranges
}

// FixedPlan returns consecutive windows of maxChunk covering total; the last
// window may be shorter.
func FixedPlan(total, maxChunk time.Duration) []Range {
	if total <= 0 || maxChunk <= 0 {
		return nil
	}
	ranges := make([]Range, 0, int((total+maxChunk-1)/maxChunk))
	for start := time.Duration(0); start < total; start += maxChunk {
		ranges = append(ranges, Range{Start: start, End: min(start+maxChunk, total)})
	}
	return ranges
}

// MaxDurationDrift is how far probed metadata may disagree with the decoded
// length before the decoded length is trusted instead.
const MaxDurationDrift = 500 * time.Millisecond

// EffectiveDuration returns total unless the decoded profile is longer or
// shorter by more than MaxDurationDrift, in which case the decoded length wins.
func EffectiveDuration(p audio.Profile, total time.Duration) time.Duration {
	decoded := p.Duration()
	if decoded <= 0 {
		return total
	}
	drift := decoded - total
	if drift < 0 {
		drift = -drift
	}
	if drift > MaxDurationDrift {
		return decoded
	}
	return total
}

// Plan chooses between the silence plan and the fixed fallback. The silence
// plan is kept only when it is non-empty and no range exceeds cfg.MaxChunk.
// Fixed windows cover EffectiveDuration(p, total).
func Plan(p audio.Profile, total time.Duration, cfg Config) ([]Range, Strategy) {
	ranges := SilencePlan(p, cfg)
	if planFits(ranges, cfg.MaxChunk) {
		return ranges, StrategySilence
	}
	return FixedPlan(EffectiveDuration(p, total), cfg.MaxChunk), StrategyFixed
}

func planFits(ranges []Range, maxChunk time.Duration) bool {
	if len(ranges) == 0 {
		return false
	}
	for _, r := range ranges {
		if r.Duration() > maxChunk {
			return false
		}
	}
	return true
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
