package gspeech

import (
	"strings"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"podscribe/internal/language"
	"podscribe/internal/transcript"
)

type word struct {
	text       string
	start, end float64
}

func toTranscript(resp *speechpb.LongRunningRecognizeResponse, hint string) transcript.Transcript {
	out := transcript.Transcript{Language: language.Normalize(hint), Segments: []transcript.Segment{}}
	var words []word
	var texts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 || strings.TrimSpace(alts[0].GetTranscript()) == "" {
			continue
		}
		if out.Language == "" {
			out.Language = language.Normalize(result.GetLanguageCode())
		}
		texts = append(texts, strings.TrimSpace(alts[0].GetTranscript()))
		for _, w := range alts[0].GetWords() {
			words = append(words, word{
				text:  w.GetWord(),
				start: w.GetStartTime().AsDuration().Seconds(),
				end:   w.GetEndTime().AsDuration().Seconds(),
			})
		}
	}

	sep := " "
	if joinsWithoutSpaces(out.Language) {
		sep = ""
	}
	if len(words) > 0 {
		out.Segments = groupByTime(words, segmentWindow, sep)
	} else if len(texts) > 0 {
		out.Segments = append(out.Segments, transcript.Segment{Text: strings.Join(texts, sep)})
	}
	out.Text = transcript.JoinText(out.Segments)
	return out
}

// groupByTime starts a new segment once a word begins window seconds or
// more after the current segment's start.
func groupByTime(words []word, window float64, sep string) []transcript.Segment {
	var segs []transcript.Segment
	var buf strings.Builder
	start, end := words[0].start, words[0].end

	flush := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			segs = append(segs, transcript.Segment{Start: start, End: end, Text: text})
		}
		buf.Reset()
	}

	for _, w := range words {
		if w.start-start >= window && buf.Len() > 0 {
			flush()
			start, end = w.start, w.end
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(w.text)
		end = max(end, w.end)
	}
	flush()
	return segs
}

func joinsWithoutSpaces(code string) bool {
	switch code {
	case "zh", "yue", "ja":
		return true
	default:
		return false
	}
}
