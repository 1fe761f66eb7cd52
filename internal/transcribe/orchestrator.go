// Package transcribe drives a transcription job end to end: submit to the
// provider, poll until terminal, aggregate diarization, persist, and emit
// staged progress to the initiating client.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/assembly"
	"github.com/skillsenselab/scribe/internal/diarize"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/protocol"
	"github.com/skillsenselab/scribe/internal/store"
)

const previewLimit = 100

// Provider is the asynchronous transcription backend.
type Provider interface {
	Submit(ctx context.Context, audioURL string, opts assembly.Options) (string, error)
	Poll(ctx context.Context, jobID string) (*assembly.Transcript, error)
}

// Persister durably stores a completed result.
type Persister interface {
	SaveResult(ctx context.Context, t *store.Transcript, speakers []store.Speaker) error
}

// Notifier delivers staged progress to the client that initiated the job.
// Delivery failures are the notifier's problem; orchestration never stops
// because a client went away.
type Notifier interface {
	Notify(msg protocol.Message)
}

// Broadcaster fans one message out to every connected client.
type Broadcaster interface {
	Broadcast(msg protocol.Message)
}

// NopNotifier discards progress updates. Used by the synchronous HTTP path.
type NopNotifier struct{}

// Notify discards msg.
func (NopNotifier) Notify(protocol.Message) {}

// Result is the completed-transcription payload sent to clients.
type Result struct {
	ID               string                `json:"id"`
	AudioURL         string                `json:"audio_url"`
	Transcript       string                `json:"transcript"`
	Utterances       []diarize.Utterance   `json:"enhanced_utterances"`
	Speakers         []diarize.SpeakerStat `json:"speakers_summary"`
	SpeakersCount    int                   `json:"speakers_count"`
	Confidence       float64               `json:"confidence"`
	ProcessingTime   float64               `json:"processing_time"`
	AudioDuration    float64               `json:"audio_duration"`
	LanguageDetected string                `json:"language_detected"`
	CreatedAt        time.Time             `json:"created_at"`
}

// Config holds orchestrator timing knobs.
type Config struct {
	// PollInterval is the delay between provider status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ProgressQuiet is how long the orchestrator stays silent before
	// emitting a processing update during a long poll phase.
	ProgressQuiet time.Duration `mapstructure:"progress_quiet"`
}

// ApplyDefaults applies default values to orchestrator configuration.
func (c *Config) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.ProgressQuiet == 0 {
		c.ProgressQuiet = 10 * time.Second
	}
}

// Orchestrator runs transcription jobs.
type Orchestrator struct {
	cfg       Config
	provider  Provider
	persister Persister
	broadcast Broadcaster
	clock     Clock
	log       *logger.Logger
}

// New creates an orchestrator. A nil clock means the wall clock.
func New(cfg Config, provider Provider, persister Persister, broadcast Broadcaster, clock Clock, log *logger.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	if clock == nil {
		clock = SystemClock()
	}
	return &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		persister: persister,
		broadcast: broadcast,
		clock:     clock,
		log:       log.WithComponent("transcribe"),
	}
}

// Run executes one job against the already-uploaded audio at audioURL.
// Staged progress goes to notify; exactly one terminal outcome is emitted,
// either a completed message with the result or an error message. On
// success every connected client also receives a new_transcript broadcast.
func (o *Orchestrator) Run(ctx context.Context, audioURL string, notify Notifier) (*Result, error) {
	start := o.clock.Now()
	notify.Notify(protocol.Status(protocol.StatusStarting, "Starting transcription process..."))

	jobID, err := o.provider.Submit(ctx, audioURL, assembly.DefaultOptions())
	if err != nil {
		return nil, o.fail(notify, apperr.Submit(err))
	}

	job := &Job{ProviderID: jobID, State: StateSubmitted, SubmittedAt: start}
	o.log.Info("job submitted", map[string]interface{}{logger.FieldJobID: jobID})
	notify.Notify(protocol.Status(protocol.StatusSubmitted,
		fmt.Sprintf("Transcription submitted (ID: %s). Processing...", jobID)))

	t, err := o.poll(ctx, job, notify)
	if err != nil {
		return nil, o.fail(notify, err)
	}

	result, err := o.finish(ctx, job, t, audioURL, start)
	if err != nil {
		return nil, o.fail(notify, err)
	}

	notify.Notify(protocol.Message{
		Status:  protocol.StatusCompleted,
		Message: "Transcription completed successfully!",
		Data:    result,
	})
	o.broadcast.Broadcast(protocol.Message{
		Status:       protocol.StatusNewTranscript,
		Message:      "New transcription available",
		TranscriptID: result.ID,
		Preview:      preview(result.Transcript),
	})
	return result, nil
}

// poll waits out the provider until the job reaches a terminal status.
func (o *Orchestrator) poll(ctx context.Context, job *Job, notify Notifier) (*assembly.Transcript, error) {
	if err := job.transition(StatePolling); err != nil {
		return nil, apperr.PollTransport(err)
	}
	lastProgress := o.clock.Now()

	for {
		select {
		case <-ctx.Done():
			job.State = StateFailed
			return nil, apperr.PollTransport(ctx.Err())
		case <-o.clock.After(o.cfg.PollInterval):
		}

		t, err := o.provider.Poll(ctx, job.ProviderID)
		if err != nil {
			job.State = StateFailed
			return nil, apperr.PollTransport(err)
		}
		job.LastPollAt = o.clock.Now()

		if job.LastPollAt.Sub(lastProgress) > o.cfg.ProgressQuiet {
			lastProgress = job.LastPollAt
			notify.Notify(protocol.Status(protocol.StatusProcessing,
				fmt.Sprintf("Still processing... Status: %s", t.Status)))
		}

		if !assembly.Terminal(t.Status) {
			continue
		}
		if t.Status == assembly.StatusError {
			job.State = StateFailed
			return nil, apperr.ProviderJob(t.Error)
		}
		return t, nil
	}
}

// finish converts a completed provider transcript into the persisted result.
func (o *Orchestrator) finish(ctx context.Context, job *Job, t *assembly.Transcript, audioURL string, start time.Time) (*Result, error) {
	now := o.clock.Now()
	processingTime := now.Sub(start).Seconds()
	audioDuration := t.AudioDuration / 1000

	turns := make([]diarize.Turn, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		turns = append(turns, diarize.Turn{
			Speaker:    u.Speaker,
			Text:       u.Text,
			Start:      float64(u.Start) / 1000,
			End:        float64(u.End) / 1000,
			Confidence: u.Confidence,
			Words:      len(u.Words),
		})
	}

	summary, err := diarize.Aggregate(turns, audioDuration)
	if err != nil {
		ae := apperr.ProviderJob("invalid utterance data")
		ae.Cause = err
		return nil, ae
	}

	record, speakers, err := toRecords(t, summary, audioURL, processingTime, audioDuration, now)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	if err := o.persister.SaveResult(ctx, record, speakers); err != nil {
		job.State = StateFailed
		return nil, apperr.Persistence(err)
	}

	if err := job.transition(StateCompleted); err != nil {
		return nil, apperr.Persistence(err)
	}
	o.log.Info("job completed", map[string]interface{}{
		logger.FieldJobID: job.ProviderID,
		"transcript_id":   record.ID.String(),
		"speakers":        summary.SpeakersCount,
		"processing_time": processingTime,
	})

	return &Result{
		ID:               record.ID.String(),
		AudioURL:         audioURL,
		Transcript:       t.Text,
		Utterances:       summary.Utterances,
		Speakers:         summary.Speakers,
		SpeakersCount:    summary.SpeakersCount,
		Confidence:       t.Confidence,
		ProcessingTime:   processingTime,
		AudioDuration:    audioDuration,
		LanguageDetected: t.LanguageCode,
		CreatedAt:        record.CreatedAt,
	}, nil
}

// toRecords maps a summary onto the database rows.
func toRecords(t *assembly.Transcript, summary *diarize.Summary, audioURL string, processingTime, audioDuration float64, completedAt time.Time) (*store.Transcript, []store.Speaker, error) {
	diarized, err := store.AsJSON(summary)
	if err != nil {
		return nil, nil, err
	}
	utterances, err := store.AsJSON(summary.Utterances)
	if err != nil {
		return nil, nil, err
	}

	record := &store.Transcript{
		AudioURL:           audioURL,
		Transcript:         t.Text,
		DiarizedTranscript: diarized,
		Utterances:         utterances,
		SpeakersCount:      summary.SpeakersCount,
		ConfidenceScore:    t.Confidence,
		ProcessingTime:     processingTime,
		AudioDuration:      audioDuration,
		LanguageDetected:   t.LanguageCode,
		Status:             "completed",
		CompletedAt:        &completedAt,
	}

	speakers := make([]store.Speaker, 0, len(summary.Speakers))
	for _, s := range summary.Speakers {
		speakers = append(speakers, store.Speaker{
			SpeakerLabel:    s.Speaker,
			TotalWords:      s.TotalWords,
			TotalDuration:   s.TotalDuration,
			ConfidenceScore: s.AvgConfidence,
		})
	}
	return record, speakers, nil
}

// fail logs the stage failure and emits the terminal error message.
func (o *Orchestrator) fail(notify Notifier, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.PollTransport(err)
	}
	o.log.WithError(ae).Error("job failed", map[string]interface{}{
		"error_type": string(ae.Kind),
	})
	notify.Notify(protocol.Error(ae))
	return ae
}

// preview truncates text for the new_transcript broadcast.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
