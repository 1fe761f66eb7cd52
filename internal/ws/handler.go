package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/protocol"
	"github.com/skillsenselab/scribe/internal/storage"
	"github.com/skillsenselab/scribe/internal/store"
	"github.com/skillsenselab/scribe/internal/transcribe"
)

// CloseTryAgainLater is sent when the registry is at capacity.
const CloseTryAgainLater = 1013

// Config holds WebSocket endpoint configuration.
type Config struct {
	// MaxConnections caps the number of concurrent sessions.
	MaxConnections int `mapstructure:"max_connections"`

	// IdleTimeout is how long a session may stay silent before the server
	// sends a keepalive ping.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxAudioBytes bounds the decoded size of one audio payload.
	MaxAudioBytes int64 `mapstructure:"max_audio_bytes"`

	// AllowedExtensions lists the accepted audio file extensions.
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// ApplyDefaults applies default values to WebSocket configuration.
func (c *Config) ApplyDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = 100
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 300 * time.Second
	}
	if c.MaxAudioBytes == 0 {
		c.MaxAudioBytes = 100 << 20
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac", ".webm"}
	}
}

// Handler upgrades connections and routes inbound messages.
type Handler struct {
	cfg          Config
	registry     *Registry
	uploader     *storage.Uploader
	orchestrator *transcribe.Orchestrator
	repo         *store.Repository
	upgrader     websocket.Upgrader
	log          *logger.Logger
}

// NewHandler creates the WebSocket handler.
func NewHandler(cfg Config, registry *Registry, uploader *storage.Uploader, orchestrator *transcribe.Orchestrator, repo *store.Repository, log *logger.Logger) *Handler {
	cfg.ApplyDefaults()
	return &Handler{
		cfg:          cfg,
		registry:     registry,
		uploader:     uploader,
		orchestrator: orchestrator,
		repo:         repo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.WithComponent("ws"),
	}
}

// Handle is the gin endpoint for /ws.
func (h *Handler) Handle(c *gin.Context) {
	h.serve(c.Writer, c.Request)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", map[string]interface{}{logger.FieldError: err.Error()})
		return
	}

	sess := NewSession(conn)
	if err := h.registry.Add(sess); err != nil {
		ae, ok := apperr.As(err)
		if !ok {
			ae = apperr.Capacity()
		}
		sess.Send(protocol.Error(ae))
		sess.Close(CloseTryAgainLater, ae.Message)
		return
	}
	defer func() {
		h.registry.Remove(sess.ID())
		sess.Close(websocket.CloseNormalClosure, "")
	}()

	done := make(chan struct{})
	defer close(done)
	activity := make(chan struct{}, 1)
	go h.keepalive(sess, done, activity)

	h.readLoop(r.Context(), sess, activity)
}

// keepalive pings the session after each idle period so intermediaries keep
// the connection open during long jobs.
func (h *Handler) keepalive(sess *Session, done <-chan struct{}, activity <-chan struct{}) {
	timer := time.NewTimer(h.cfg.IdleTimeout)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(h.cfg.IdleTimeout)
		case <-timer.C:
			h.registry.Send(sess.ID(), protocol.Ping())
			timer.Reset(h.cfg.IdleTimeout)
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, sess *Session, activity chan<- struct{}) {
	for {
		var in protocol.Inbound
		if err := sess.ReadJSON(&in); err != nil {
			if isJSONError(err) {
				h.sendError(sess, apperr.JSONDecode(err))
				continue
			}
			return
		}
		select {
		case activity <- struct{}{}:
		default:
		}
		h.dispatch(ctx, sess, in)
	}
}

// isJSONError reports whether err came from decoding the frame payload
// rather than from the connection itself.
func isJSONError(err error) bool {
	var syntax *json.SyntaxError
	var unmarshal *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &unmarshal)
}

// dispatch routes one inbound message by its type discriminator.
func (h *Handler) dispatch(ctx context.Context, sess *Session, in protocol.Inbound) {
	switch in.Type {
	case protocol.TypeTranscribe:
		h.handleTranscribe(ctx, sess, in)
	case protocol.TypeGetTranscripts:
		h.handleList(ctx, sess, in)
	case protocol.TypeGetTranscript:
		h.handleGet(ctx, sess, in)
	default:
		msg := protocol.Error(apperr.Protocol(fmt.Sprintf("Unknown message type: %s", in.Type)))
		msg.AvailableTypes = protocol.ValidTypes
		h.registry.Send(sess.ID(), msg)
	}
}

// handleTranscribe validates and uploads the audio, then starts the job in
// a goroutine detached from the session. The session only carries progress;
// the job finishes with or without it.
func (h *Handler) handleTranscribe(ctx context.Context, sess *Session, in protocol.Inbound) {
	if in.AudioData == "" {
		h.sendError(sess, apperr.Protocol("No audio data provided"))
		return
	}
	h.registry.Send(sess.ID(), protocol.Status(protocol.StatusReceived, "Audio data received, processing..."))

	data, err := base64.StdEncoding.DecodeString(in.AudioData)
	if err != nil {
		h.sendError(sess, apperr.Decode(err))
		return
	}
	if int64(len(data)) > h.cfg.MaxAudioBytes {
		h.sendError(sess, apperr.Protocol("Audio payload too large").
			WithDetail("max_bytes", h.cfg.MaxAudioBytes))
		return
	}

	ext, aerr := h.normalizeExtension(in.FileExtension)
	if aerr != nil {
		h.sendError(sess, aerr)
		return
	}

	h.registry.Send(sess.ID(), protocol.Status(protocol.StatusUploading, "Uploading audio file..."))
	audioURL, err := h.uploader.UploadAudio(ctx, data, ext)
	if err != nil {
		ae, _ := apperr.As(err)
		h.sendError(sess, ae)
		return
	}
	uploaded := protocol.Status(protocol.StatusUploaded, "Audio uploaded successfully")
	uploaded.AudioURL = audioURL
	h.registry.Send(sess.ID(), uploaded)

	notify := h.registry.Notifier(sess.ID())
	go func() {
		if _, err := h.orchestrator.Run(context.Background(), audioURL, notify); err != nil {
			h.log.Warn("transcription job failed", map[string]interface{}{
				logger.FieldSessionID: sess.ID(),
				logger.FieldError:     err.Error(),
			})
		}
	}()
}

func (h *Handler) handleList(ctx context.Context, sess *Session, in protocol.Inbound) {
	page, limit := in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	transcripts, err := h.repo.List(ctx, page, limit, "")
	if err != nil {
		ae := apperr.Persistence(err)
		ae.Message = "Failed to retrieve transcripts."
		h.sendError(sess, ae)
		return
	}

	msg := protocol.Status(protocol.StatusSuccess, "Transcripts retrieved")
	msg.Data = map[string]any{
		"transcripts": transcripts,
		"count":       len(transcripts),
		"page":        page,
		"limit":       limit,
	}
	h.registry.Send(sess.ID(), msg)
}

func (h *Handler) handleGet(ctx context.Context, sess *Session, in protocol.Inbound) {
	if in.TranscriptID == "" {
		h.sendError(sess, apperr.Protocol("transcript_id is required"))
		return
	}

	t, err := h.repo.Get(ctx, in.TranscriptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.sendError(sess, apperr.Protocol("Transcript not found").
				WithDetail("transcript_id", in.TranscriptID))
			return
		}
		ae := apperr.Persistence(err)
		ae.Message = "Failed to retrieve transcript."
		h.sendError(sess, ae)
		return
	}

	msg := protocol.Status(protocol.StatusSuccess, "Transcript retrieved")
	msg.Data = t
	h.registry.Send(sess.ID(), msg)
}

// normalizeExtension lowercases ext, ensures the leading dot, and checks it
// against the allow list. Empty means the uploader's default.
func (h *Handler) normalizeExtension(ext string) (string, *apperr.Error) {
	if ext == "" {
		return "", nil
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, allowed := range h.cfg.AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", apperr.Protocol(fmt.Sprintf("Unsupported file extension: %s", ext)).
		WithDetail("allowed", h.cfg.AllowedExtensions)
}

func (h *Handler) sendError(sess *Session, ae *apperr.Error) {
	h.registry.Send(sess.ID(), protocol.Error(ae))
}
