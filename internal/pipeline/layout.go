package pipeline

import (
	"path/filepath"

	"podscribe/internal/render"
	"podscribe/internal/textutil"
)

// Layout is where a run keeps its files.
type Layout struct {
	// ChunkDir holds exported chunks, their markdown and manifest.yaml.
	ChunkDir string
	// TranscriptDir holds the final document.
	TranscriptDir string
	// Document is the final document path.
	Document string
}

// LayoutFor returns the layout for a source named base under outputDir:
// <out>/chunks/<base>/ and <out>/transcripts/<base>/<base><ext>. base is
// sanitized into a single path segment first.
func LayoutFor(outputDir, base string, format render.Format) Layout {
	base = textutil.SanitizeFileName(base)
	transcripts := filepath.Join(outputDir, "transcripts", base)
	return Layout{
		ChunkDir:      filepath.Join(outputDir, "chunks", base),
		TranscriptDir: transcripts,
		Document:      filepath.Join(transcripts, base+format.Ext()),
	}
}
