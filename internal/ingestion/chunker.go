package ingestion

import (
	"regexp"
	"strings"
)

// Chunk is one evidence snippet carved out of a source field, with byte
// offsets into the original text. Offsets feed the deterministic
// evidence unit ids, so the split rules must stay stable.
type Chunk struct {
	Text  string
	Start int
	End   int
	Index int
}

var (
	sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)
	numberedRe = regexp.MustCompile(`(?:^|\s)(?:\d+[).\]]|[-*•])\s+`)
)

// minSentenceLen drops fragments too short to stand alone as evidence.
const minSentenceLen = 8

type span struct {
	text  string
	start int
	end   int
}

// splitByBlankLines carves text into paragraphs. A newline directly
// followed by another newline is a separator; everything else belongs
// to a paragraph.
func splitByBlankLines(text string) []span {
	parts := []span{}
	start := -1
	for i := 0; i < len(text); i++ {
		separator := text[i] == '\n' && i+1 < len(text) && text[i+1] == '\n'
		if separator {
			if start >= 0 {
				segment := text[start:i]
				if strings.TrimSpace(segment) != "" {
					parts = append(parts, span{text: segment, start: start, end: i})
				}
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		segment := text[start:]
		if strings.TrimSpace(segment) != "" {
			parts = append(parts, span{text: segment, start: start, end: len(text)})
		}
	}
	return parts
}

func splitLines(text string) []Chunk {
	var chunks []Chunk
	offset := 0
	index := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineText := strings.TrimSuffix(line, "\n")
		start := offset
		end := offset + len(lineText)
		if strings.TrimSpace(lineText) != "" {
			chunks = append(chunks, Chunk{Text: lineText, Start: start, End: end, Index: index})
			index++
		}
		offset += len(line)
	}
	return chunks
}

func splitSentenceish(text string) []Chunk {
	var chunks []Chunk
	index := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		segment := strings.TrimSpace(raw)
		if len(segment) < minSentenceLen {
			continue
		}
		end := loc[0] + len(strings.TrimRight(raw, " \t\r\n"))
		chunks = append(chunks, Chunk{Text: segment, Start: loc[0], End: end, Index: index})
		index++
	}
	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = append(chunks, Chunk{Text: strings.TrimSpace(text), Start: 0, End: len(text), Index: 0})
	}
	return chunks
}

func splitParagraphThenSentence(text string) []Chunk {
	var chunks []Chunk
	index := 0
	for _, para := range splitByBlankLines(text) {
		for _, sentence := range splitSentenceish(para.text) {
			chunks = append(chunks, Chunk{
				Text:  sentence.Text,
				Start: para.start + sentence.Start,
				End:   para.start + sentence.End,
				Index: index,
			})
			index++
		}
	}
	return chunks
}

// splitResolution carves resolution text line by line, breaking numbered
// or bulleted lines into one chunk per step marker.
func splitResolution(text string) []Chunk {
	var chunks []Chunk
	index := 0
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineText := strings.TrimSuffix(line, "\n")
		if strings.TrimSpace(lineText) != "" {
			for _, sub := range splitNumberedLine(lineText, offset) {
				chunks = append(chunks, Chunk{Text: sub.Text, Start: sub.Start, End: sub.End, Index: index})
				index++
			}
		}
		offset += len(line)
	}
	return chunks
}

func splitNumberedLine(lineText string, lineStart int) []Chunk {
	matches := numberedRe.FindAllStringIndex(lineText, -1)
	if len(matches) == 0 {
		return []Chunk{{Text: lineText, Start: lineStart, End: lineStart + len(lineText), Index: 0}}
	}

	boundaries := make([]int, 0, len(matches)+1)
	for _, loc := range matches {
		boundaries = append(boundaries, loc[0])
	}
	boundaries = append(boundaries, len(lineText))

	var chunks []Chunk
	for i := 0; i < len(boundaries)-1; i++ {
		startInLine := boundaries[i]
		endInLine := boundaries[i+1]
		segment := strings.TrimSpace(lineText[startInLine:endInLine])
		if segment == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  segment,
			Start: lineStart + startInLine,
			End:   lineStart + endInLine,
			Index: i,
		})
	}
	return chunks
}

func splitScriptText(text string) []Chunk {
	var chunks []Chunk
	index := 0
	for _, para := range splitByBlankLines(text) {
		for _, line := range splitLines(para.text) {
			chunks = append(chunks, Chunk{
				Text:  line.Text,
				Start: para.start + line.Start,
				End:   para.start + line.End,
				Index: index,
			})
			index++
		}
	}
	return chunks
}

func wholeText(text string) []Chunk {
	return []Chunk{{Text: text, Start: 0, End: len(text), Index: 0}}
}
