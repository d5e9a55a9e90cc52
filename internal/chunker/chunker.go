// Package chunker splits raw markdown text into bounded, deterministic
// chunks. Identical input always yields the identical chunk sequence,
// which exact dedup and idempotent re-ingestion depend on.
package chunker

import "strings"

// Chunk kinds.
const (
	KindHeading   = "heading"
	KindBullet    = "bullet"
	KindParagraph = "paragraph"
	KindCodeBlock = "code_block"
)

// Chunk is a contiguous slice of one raw input's text. Line numbers are
// 1-based and refer to the original input.
type Chunk struct {
	Text      string
	Kind      string
	LineStart int
	LineEnd   int
}

// Split chunks markdown text on structural boundaries: fenced code
// blocks, headings, top-level bullets, and paragraph runs. Paragraphs
// and code blocks longer than maxLines are hard-split at the bound.
// Chunks never span inputs; blank-only content yields no chunks.
func Split(text string, maxLines int) []Chunk {
	if maxLines < 1 {
		maxLines = 1
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	n := len(lines)

	var out []Chunk
	i := 0
	for i < n {
		line := lines[i]
		lineNum := i + 1

		// Fenced code block: take through the closing fence.
		if strings.HasPrefix(line, "```") {
			start := i
			i++
			for i < n && !strings.HasPrefix(lines[i], "```") {
				i++
			}
			if i < n {
				i++ // include closing fence
			}
			out = appendBounded(out, lines[start:i], start+1, maxLines, KindCodeBlock)
			continue
		}

		// Heading: single line, leading # stripped.
		if strings.HasPrefix(line, "#") {
			title := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if title != "" {
				out = append(out, Chunk{Text: title, Kind: KindHeading, LineStart: lineNum, LineEnd: lineNum})
			}
			i++
			continue
		}

		// Top-level bullet: one chunk per bullet line.
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			body := strings.TrimSpace(trimmed[2:])
			if body != "" {
				out = append(out, Chunk{Text: body, Kind: KindBullet, LineStart: lineNum, LineEnd: lineNum})
			}
			i++
			continue
		}

		// Paragraph: run of non-blank lines until a blank or a special line.
		if strings.TrimSpace(line) != "" {
			start := i
			i++
			for i < n {
				l := lines[i]
				if strings.TrimSpace(l) == "" {
					i++
					break
				}
				lt := strings.TrimLeft(l, " \t")
				if strings.HasPrefix(l, "```") || strings.HasPrefix(l, "#") ||
					strings.HasPrefix(lt, "- ") || strings.HasPrefix(lt, "* ") {
					break
				}
				i++
			}
			end := i
			if end > start && strings.TrimSpace(lines[end-1]) == "" {
				end--
			}
			out = appendParagraphs(out, lines[start:end], start+1, maxLines)
			continue
		}

		i++
	}

	return out
}

// appendParagraphs emits paragraph chunks from a run of lines, hard-split
// at maxLines. Lines inside one chunk are joined with a single space.
func appendParagraphs(out []Chunk, lines []string, firstLine, maxLines int) []Chunk {
	for off := 0; off < len(lines); off += maxLines {
		end := min(off+maxLines, len(lines))
		parts := make([]string, 0, end-off)
		for _, l := range lines[off:end] {
			parts = append(parts, strings.TrimSpace(l))
		}
		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			continue
		}
		out = append(out, Chunk{
			Text:      text,
			Kind:      KindParagraph,
			LineStart: firstLine + off,
			LineEnd:   firstLine + end - 1,
		})
	}
	return out
}

// appendBounded emits chunks of kind from a run of lines preserved
// verbatim (newlines kept), hard-split at maxLines.
func appendBounded(out []Chunk, lines []string, firstLine, maxLines int, kind string) []Chunk {
	for off := 0; off < len(lines); off += maxLines {
		end := min(off+maxLines, len(lines))
		text := strings.TrimSpace(strings.Join(lines[off:end], "\n"))
		if text == "" {
			continue
		}
		out = append(out, Chunk{
			Text:      text,
			Kind:      kind,
			LineStart: firstLine + off,
			LineEnd:   firstLine + end - 1,
		})
	}
	return out
}
