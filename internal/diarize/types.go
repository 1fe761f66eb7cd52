package diarize

// Turn is one raw speaker turn as delivered by the provider, with timings
// already converted to seconds.
type Turn struct {
	// Speaker is the provider-assigned speaker label (e.g. "A").
	Speaker string
	// Text is the transcribed text for this turn.
	Text string
	// Start is the turn start time in seconds.
	Start float64
	// End is the turn end time in seconds.
	End float64
	// Confidence is the provider's confidence for this turn.
	Confidence float64
	// Words is the number of words in this turn.
	Words int
}

// Utterance is a normalized speaker turn. Immutable once produced.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Duration   float64 `json:"duration"`
	Confidence float64 `json:"confidence"`
	WordCount  int     `json:"word_count"`
}

// SpeakerStat aggregates all turns of one distinct speaker label.
type SpeakerStat struct {
	Speaker            string  `json:"speaker"`
	TotalWords         int     `json:"total_words"`
	TotalDuration      float64 `json:"total_duration"`
	UtteranceCount     int     `json:"utterances_count"`
	AvgConfidence      float64 `json:"avg_confidence"`
	SpeakingPercentage float64 `json:"speaking_percentage"`
}

// Summary is the full diarization result for one transcript.
type Summary struct {
	Utterances    []Utterance   `json:"enhanced_utterances"`
	Speakers      []SpeakerStat `json:"speakers_summary"`
	SpeakersCount int           `json:"speakers_count"`
}
