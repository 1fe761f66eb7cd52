// Package diarize turns a provider-ordered utterance list into normalized
// utterances plus per-speaker statistics. It performs no I/O.
package diarize

import (
	"errors"
	"fmt"
)

// ErrDataShape is returned when the utterance list is malformed. Input is
// rejected rather than coerced.
var ErrDataShape = errors.New("malformed utterance data")

// Aggregate normalizes turns and computes per-speaker statistics.
//
// Utterance order follows the input; speakers are enumerated in first-seen
// order. Speaking percentage uses audioDuration (seconds) as the denominator
// and is 0 when audioDuration <= 0.
func Aggregate(turns []Turn, audioDuration float64) (*Summary, error) {
	utterances := make([]Utterance, 0, len(turns))

	// Running per-speaker accumulators, keyed by label.
	type acc struct {
		words         int
		duration      float64
		count         int
		confidenceSum float64
	}
	stats := make(map[string]*acc)
	order := make([]string, 0)

	for i, turn := range turns {
		if turn.Start < 0 || turn.End < turn.Start {
			return nil, fmt.Errorf("%w: utterance %d has start=%g end=%g", ErrDataShape, i, turn.Start, turn.End)
		}

		duration := turn.End - turn.Start

		a, ok := stats[turn.Speaker]
		if !ok {
			a = &acc{}
			stats[turn.Speaker] = a
			order = append(order, turn.Speaker)
		}
		a.words += turn.Words
		a.duration += duration
		a.count++
		a.confidenceSum += turn.Confidence

		utterances = append(utterances, Utterance{
			Speaker:    turn.Speaker,
			Text:       turn.Text,
			Start:      turn.Start,
			End:        turn.End,
			Duration:   duration,
			Confidence: turn.Confidence,
			WordCount:  turn.Words,
		})
	}

	speakers := make([]SpeakerStat, 0, len(order))
	for _, label := range order {
		a := stats[label]
		avgConfidence := 0.0
		if a.count > 0 {
			avgConfidence = a.confidenceSum / float64(a.count)
		}
		percentage := 0.0
		if audioDuration > 0 {
			percentage = a.duration / audioDuration * 100
		}
		speakers = append(speakers, SpeakerStat{
			Speaker:            label,
			TotalWords:         a.words,
			TotalDuration:      a.duration,
			UtteranceCount:     a.count,
			AvgConfidence:      avgConfidence,
			SpeakingPercentage: percentage,
		})
	}

	return &Summary{
		Utterances:    utterances,
		Speakers:      speakers,
		SpeakersCount: len(speakers),
	}, nil
}
