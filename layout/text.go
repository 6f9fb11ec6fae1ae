package layout

import (
	"strings"
	"unicode/utf8"
)

const Ellipsis = "…"

// Measurer reports the rendered width of s in millimetres.
type Measurer interface {
	StringWidth(f Font, s string) float64
}

// MonospaceMeasurer gives every rune the same advance, scaled by font size.
// Used in tests and anywhere a font engine is unavailable.
type MonospaceMeasurer struct {
	// Advance per rune at 10pt, in mm.
	Advance float64
}

func (m MonospaceMeasurer) StringWidth(f Font, s string) float64 {
	adv := m.Advance
	if adv <= 0 {
		adv = 2
	}
	return float64(utf8.RuneCountInString(s)) * adv * f.Size / 10
}

// Wrap breaks text into lines no wider than width, greedily by words. Words
// wider than width are split by runes. When more than maxLines are needed the
// last kept line ends with an ellipsis and truncated is true.
func Wrap(m Measurer, f Font, text string, width float64, maxLines int) (lines []string, truncated bool) {
	if maxLines <= 0 {
		return nil, strings.TrimSpace(text) != ""
	}
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(m, f, para, width)...)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= maxLines {
		return lines, false
	}
	lines = lines[:maxLines]
	lines[maxLines-1] = ellipsize(m, f, lines[maxLines-1], width)
	return lines, true
}

func wrapParagraph(m Measurer, f Font, para string, width float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := ""
	for _, w := range words {
		if m.StringWidth(f, w) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			chunks := splitRunes(m, f, w, width)
			lines = append(lines, chunks[:len(chunks)-1]...)
			current = chunks[len(chunks)-1]
			continue
		}
		candidate := w
		if current != "" {
			candidate = current + " " + w
		}
		if m.StringWidth(f, candidate) <= width {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}

// splitRunes always puts at least one rune on each chunk.
func splitRunes(m Measurer, f Font, word string, width float64) []string {
	var chunks []string
	var b strings.Builder
	for _, r := range word {
		next := b.String() + string(r)
		if b.Len() > 0 && m.StringWidth(f, next) > width {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func ellipsize(m Measurer, f Font, s string, width float64) string {
	runes := []rune(strings.TrimRight(s, " "))
	for len(runes) > 0 {
		candidate := strings.TrimRight(string(runes), " ") + Ellipsis
		if m.StringWidth(f, candidate) <= width {
			return candidate
		}
		runes = runes[:len(runes)-1]
	}
	return Ellipsis
}

// FitLine returns s unchanged when it fits, otherwise its longest prefix plus an ellipsis.
func FitLine(m Measurer, f Font, s string, width float64) string {
	if m.StringWidth(f, s) <= width {
		return s
	}
	return ellipsize(m, f, s, width)
}
