// Package subtitle renders diarized utterances as SRT or WebVTT captions.
// Long utterances are split at word boundaries and each chunk gets a time
// slice proportional to its share of the utterance text.
package subtitle

import (
	"fmt"
	"strings"

	"github.com/skillsenselab/scribe/internal/diarize"
)

const (
	// DefaultCharsPerCaption is the caption length used when none is given.
	DefaultCharsPerCaption = 80
	// MinCharsPerCaption and MaxCharsPerCaption bound the caller's choice.
	MinCharsPerCaption = 20
	MaxCharsPerCaption = 200
)

// Cue is one caption with second-resolution timings.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// ClampChars normalizes a requested caption length into the allowed range.
// Zero or negative means the default.
func ClampChars(chars int) int {
	if chars <= 0 {
		return DefaultCharsPerCaption
	}
	if chars < MinCharsPerCaption {
		return MinCharsPerCaption
	}
	if chars > MaxCharsPerCaption {
		return MaxCharsPerCaption
	}
	return chars
}

// Build converts utterances into cues. Each cue text carries the speaker
// prefix. When no utterances exist the full transcript becomes a single cue
// spanning the audio.
func Build(utterances []diarize.Utterance, fullText string, audioDuration float64, charsPerCaption int) []Cue {
	charsPerCaption = ClampChars(charsPerCaption)

	if len(utterances) == 0 {
		if strings.TrimSpace(fullText) == "" {
			return nil
		}
		return []Cue{{Index: 1, Start: 0, End: audioDuration, Text: fullText}}
	}

	cues := make([]Cue, 0, len(utterances))
	index := 1
	for _, u := range utterances {
		prefix := fmt.Sprintf("[Speaker %s] ", u.Speaker)
		chunks := splitChunks(u.Text, charsPerCaption)
		if len(chunks) == 0 {
			continue
		}

		// Slice the utterance window proportionally to each chunk's share
		// of the text.
		total := 0
		for _, c := range chunks {
			total += len(c)
		}
		duration := u.End - u.Start
		offset := u.Start
		for i, c := range chunks {
			share := duration * float64(len(c)) / float64(total)
			end := offset + share
			if i == len(chunks)-1 {
				end = u.End
			}
			cues = append(cues, Cue{
				Index: index,
				Start: offset,
				End:   end,
				Text:  prefix + c,
			})
			index++
			offset = end
		}
	}
	return cues
}

// splitChunks breaks text into pieces of at most limit characters, breaking
// only between words. A single word longer than the limit stays whole.
func splitChunks(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	current := words[0]
	for _, w := range words[1:] {
		if len(current)+1+len(w) > limit {
			chunks = append(chunks, current)
			current = w
			continue
		}
		current += " " + w
	}
	return append(chunks, current)
}

// SRT renders cues in SubRip format.
func SRT(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			c.Index, timestamp(c.Start, ","), timestamp(c.End, ","), c.Text)
	}
	return b.String()
}

// VTT renders cues in WebVTT format.
func VTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			timestamp(c.Start, "."), timestamp(c.End, "."), c.Text)
	}
	return b.String()
}

// timestamp formats seconds as HH:MM:SS<sep>mmm.
func timestamp(seconds float64, sep string) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}
