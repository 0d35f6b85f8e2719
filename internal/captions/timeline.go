package captions

import (
	"strings"

	"github.com/samber/lo"

	"narration-video-gen/internal/model"
)

const (
	SentenceDelimiter = ". "
	LinesPerChunk     = 2
)

// Build splits text into caption chunks of at most two wrapped lines and
// lays them out back to back from zero. Each chunk gets a share of
// durationS proportional to its word count over the whole text. Rounding
// error accumulates in the running clock and is not redistributed.
func Build(text string, durationS float64, width int) []model.CaptionChunk {
	sentences := strings.Split(strings.TrimSpace(text), SentenceDelimiter)
	totalWords := lo.SumBy(sentences, func(s string) int { return len(strings.Fields(s)) })
	if totalWords == 0 || durationS <= 0 {
		return nil
	}

	var chunks []model.CaptionChunk
	clock := 0.0
	for _, sentence := range sentences {
		lines := wrapLines(sentence, width)
		for _, group := range lo.Chunk(lines, LinesPerChunk) {
			words := lo.SumBy(group, func(l line) float64 { return l.words })
			d := durationS * words / float64(totalWords)
			chunks = append(chunks, model.CaptionChunk{
				Text:      strings.Join(lo.Map(group, func(l line, _ int) string { return l.text }), "\n"),
				StartS:    clock,
				DurationS: d,
				LineCount: len(group),
				Words:     words,
			})
			clock += d
		}
	}
	return chunks
}

// TotalDuration sums chunk durations the same way Build advances its clock.
func TotalDuration(chunks []model.CaptionChunk) float64 {
	return lo.SumBy(chunks, func(c model.CaptionChunk) float64 { return c.DurationS })
}

// Wrap greedily fills lines of at most width characters. Words longer than
// width are broken across lines.
func Wrap(text string, width int) []string {
	return lo.Map(wrapLines(text, width), func(l line, _ int) string { return l.text })
}

// line is a wrapped line and the words on it. A word broken over several
// lines counts on each of them in proportion to its characters there.
type line struct {
	text  string
	words float64
}

func wrapLines(text string, width int) []line {
	if width < 1 {
		width = 1
	}

	var (
		lines []line
		cur   []rune
		words float64
	)
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, line{text: string(cur), words: words})
		}
		cur, words = nil, 0
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		if len(cur) > 0 {
			if len(cur)+1+len(w) <= width {
				cur = append(cur, ' ')
				cur = append(cur, w...)
				words++
				continue
			}
			flush()
		}
		total := float64(len(w))
		for len(w) > width {
			cur = append(cur, w[:width]...)
			words += float64(width) / total
			w = w[width:]
			flush()
		}
		cur = append(cur, w...)
		words += float64(len(w)) / total
	}
	flush()
	return lines
}
