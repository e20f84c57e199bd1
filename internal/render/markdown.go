package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"podscribe/internal/transcript"
)

// DefaultTitle heads every document unless Options overrides it.
const DefaultTitle = "音频转录"

const unknownLanguage = "未知"

// Format selects the document type.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatDocx     Format = "docx"
)

// ParseFormat accepts "markdown", "md", or "docx".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "docx":
		return FormatDocx, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", value)
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == FormatDocx {
		return ".docx"
	}
	return ".md"
}

// Options customizes rendering.
type Options struct {
	Title string
}

func (o Options) title() string {
	if t := strings.TrimSpace(o.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// section is one block of the document, shared by both formats.
type section struct {
	heading string
	lines   []line
}

type line struct {
	label string
	text  string
}

func layout(t transcript.Transcript) (info section, body section, timed section) {
	lang := t.Language
	if strings.TrimSpace(lang) == "" {
		lang = unknownLanguage
	}
	info = section{heading: "音频信息", lines: []line{{text: "- 语言: " + lang}}}
	if len(t.Segments) > 0 {
		info.lines = append(info.lines, line{text: "- 时长: " + FormatDuration(t.LastEnd())})
	}

	body = section{heading: "完整转录文本", lines: []line{{text: strings.TrimSpace(t.Text)}}}

	if len(t.Segments) > 0 {
		timed = section{heading: "带时间戳的分段文本"}
		for _, seg := range t.Segments {
			start, end := FormatSpan(seg.Start, seg.End)
			timed.lines = append(timed.lines, line{
				label: "[" + start + "-" + end + "]",
				text:  strings.TrimSpace(seg.Text),
			})
		}
	}
	return info, body, timed
}

// Markdown writes t to w. Write errors are returned unmodified.
func Markdown(w io.Writer, t transcript.Transcript, opts Options) error {
	info, body, timed := layout(t)

	var b strings.Builder
	b.WriteString("# " + opts.title() + "\n\n")

	b.WriteString("## " + info.heading + "\n\n")
	for _, l := range info.lines {
		b.WriteString(l.text + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## " + body.heading + "\n\n")
	b.WriteString(body.lines[0].text)
	b.WriteString("\n\n")

	if timed.heading != "" {
		b.WriteString("## " + timed.heading + "\n\n")
		for _, l := range timed.lines {
			b.WriteString("**" + l.label + "** " + l.text + "\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile renders t to path in the given format. File errors are returned
// unmodified so callers can inspect them with errors.Is.
func WriteFile(path string, t transcript.Transcript, format Format, opts Options) error {
	if format == FormatDocx {
		return writeDocx(path, t, opts)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Markdown(file, t, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
