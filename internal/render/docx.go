package render

import (
	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"podscribe/internal/transcript"
)

const (
	docxFont     = "Microsoft YaHei"
	docxBodySize = 11
)

func writeDocx(path string, t transcript.Transcript, opts Options) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	styledRun(doc.AddParagraph(""), opts.title(), true, 18)

	info, body, timed := layout(t)
	for _, s := range []section{info, body, timed} {
		if s.heading == "" {
			continue
		}
		styledRun(doc.AddParagraph(""), s.heading, true, 14)
		for _, l := range s.lines {
			p := doc.AddParagraph("")
			if l.label != "" {
				styledRun(p, l.label+" ", true, docxBodySize)
			}
			styledRun(p, l.text, false, docxBodySize)
		}
	}

	return doc.SaveTo(path)
}

func styledRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docxFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
