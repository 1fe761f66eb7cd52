package assembly

// Job status values reported by the AssemblyAI v2 transcript API.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Options holds the feature flags sent with a submission.
type Options struct {
	SpeakerLabels     bool `json:"speaker_labels"`
	LanguageDetection bool `json:"language_detection"`
	Punctuate         bool `json:"punctuate"`
	FormatText        bool `json:"format_text"`
}

// DefaultOptions returns the fixed flags used for every job: diarization,
// language auto-detect, punctuation and formatting all on.
func DefaultOptions() Options {
	return Options{
		SpeakerLabels:     true,
		LanguageDetection: true,
		Punctuate:         true,
		FormatText:        true,
	}
}

// Word is one recognized word with millisecond timings.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Utterance is one speaker turn with millisecond timings.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Transcript is the provider's view of a job, returned by both submit and
// poll. Timing fields are milliseconds.
type Transcript struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Text          string      `json:"text"`
	Utterances    []Utterance `json:"utterances"`
	Confidence    float64     `json:"confidence"`
	AudioDuration float64     `json:"audio_duration"`
	LanguageCode  string      `json:"language_code"`
	Error         string      `json:"error"`
}

// Terminal reports whether the status is final for a job.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusError
}
