package gemini

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"podscribe/internal/language"
	"podscribe/internal/services"
	"podscribe/internal/transcript"
)

// seconds accepts a JSON number or a "[HH:]MM:SS[.fff]" string.
type seconds float64

func (s *seconds) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = seconds(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("time must be a number or string: %s", data)
	}
	v, err := parseClock(str)
	if err != nil {
		return err
	}
	*s = seconds(v)
	return nil
}

func parseClock(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unrecognized time %q", value)
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized time %q", value)
		}
		total = total*60 + v
	}
	return total, nil
}

type reply struct {
	Language string `json:"language"`
	Segments []struct {
		Start seconds `json:"start"`
		End   seconds `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseReply(content, hint string) (transcript.Transcript, error) {
	var r reply
	if err := services.DecodeModelJSON(content, &r); err != nil {
		return transcript.Transcript{}, services.Wrap(services.ErrValidation, "gemini", "decode reply", "", err)
	}
	out := transcript.Transcript{
		Language: language.Normalize(r.Language),
		Segments: make([]transcript.Segment, 0, len(r.Segments)),
	}
	if out.Language == "" {
		out.Language = language.Normalize(hint)
	}
	for _, seg := range r.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out.Segments = append(out.Segments, transcript.Segment{
			Start: float64(seg.Start),
			End:   float64(seg.End),
			Text:  text,
		})
	}
	out.Text = transcript.JoinText(out.Segments)
	return out, nil
}
