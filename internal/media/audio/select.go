package audio

import (
	"strings"

	"podscribe/internal/language"
	"podscribe/internal/media/ffprobe"
)

// Select picks the audio stream to transcribe. Streams tagged with the hinted
// language win, then the default-flagged stream, then the one with the most
// channels; commentary and description tracks are ranked last. Earlier streams
// win ties.
func Select(streams []ffprobe.Stream, languageHint string) (ffprobe.Stream, bool) {
	want := language.Normalize(languageHint)
	var (
		best      ffprobe.Stream
		bestScore = -1
		found     bool
	)
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := scoreStream(stream, want)
		if score > bestScore {
			best = stream
			bestScore = score
		}
		found = true
	}
	return best, found
}

func scoreStream(stream ffprobe.Stream, want string) int {
	score := 0
	if want != "" && language.Normalize(streamLanguage(stream.Tags)) == want {
		score += 1000
	}
	if stream.Disposition["default"] == 1 {
		score += 100
	}
	title := streamTitle(stream.Tags)
	if strings.Contains(title, "commentary") || strings.Contains(title, "description") {
		score -= 500
	}
	if stream.Channels > 0 {
		score += min(stream.Channels, 8)
	}
	return score + 500
}

func streamLanguage(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value, ok := tags[key]; ok {
			if value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", "")); value != "" {
				return value
			}
		}
	}
	return ""
}

func streamTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}
