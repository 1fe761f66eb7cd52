// Package api exposes the REST surface: audio upload, synchronous
// transcription, transcript queries, and subtitle export.
package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/storage"
	"github.com/skillsenselab/scribe/internal/store"
	"github.com/skillsenselab/scribe/internal/transcribe"
)

// Handler serves the REST endpoints.
type Handler struct {
	repo         *store.Repository
	uploader     *storage.Uploader
	orchestrator *transcribe.Orchestrator
	log          *logger.Logger
}

// NewHandler creates the REST handler.
func NewHandler(repo *store.Repository, uploader *storage.Uploader, orchestrator *transcribe.Orchestrator, log *logger.Logger) *Handler {
	return &Handler{
		repo:         repo,
		uploader:     uploader,
		orchestrator: orchestrator,
		log:          log.WithComponent("api"),
	}
}

// Register mounts the REST routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/upload-audio", h.uploadAudio)
	api.POST("/transcribe", h.transcribe)
	api.GET("/transcripts", h.listTranscripts)
	api.GET("/transcripts/:id", h.getTranscript)
	api.DELETE("/transcripts/:id", h.deleteTranscript)
	api.GET("/transcripts/:id/speakers", h.speakers)
	api.GET("/speakers/:id", h.speakers)
	api.GET("/transcripts/:id/srt", h.srt)
	api.GET("/transcripts/:id/vtt", h.vtt)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "scribe",
		"message": "Real-time transcription service",
		"endpoints": gin.H{
			"websocket":   "/ws",
			"transcripts": "/api/transcripts",
			"health":      "/health",
		},
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// uploadAudio accepts a multipart audio file, stores it, and returns the
// public URL. Transcription is a separate call.
func (h *Handler) uploadAudio(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	ext := filepath.Ext(header.Filename)
	audioURL, err := h.uploader.UploadAudio(c.Request.Context(), data, ext)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audio_url": audioURL,
		"filename":  header.Filename,
		"size":      len(data),
	})
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url" binding:"required,url"`
}

// transcribe runs one job synchronously against an already-uploaded file.
// The WebSocket path is the streaming variant of this.
func (h *Handler) transcribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_url is required"})
		return
	}

	result, err := h.orchestrator.Run(c.Request.Context(), req.AudioURL, transcribe.NopNotifier{})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listTranscripts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	status := c.Query("status")

	transcripts, err := h.repo.List(c.Request.Context(), page, limit, status)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcripts": transcripts,
		"count":       len(transcripts),
		"page":        page,
		"limit":       limit,
	})
}

func (h *Handler) getTranscript(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) deleteTranscript(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transcript deleted", "id": id})
}

// speakers returns the per-speaker aggregates with speaking percentage
// computed against the transcript's audio duration.
func (h *Handler) speakers(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	rows, err := h.repo.Speakers(c.Request.Context(), t.ID.String())
	if err != nil {
		h.fail(c, err)
		return
	}

	type speakerView struct {
		Speaker            string  `json:"speaker"`
		TotalWords         int     `json:"total_words"`
		TotalDuration      float64 `json:"total_duration"`
		ConfidenceScore    float64 `json:"confidence_score"`
		SpeakingPercentage float64 `json:"speaking_percentage"`
	}
	views := make([]speakerView, 0, len(rows))
	for _, s := range rows {
		percentage := 0.0
		if t.AudioDuration > 0 {
			percentage = s.TotalDuration / t.AudioDuration * 100
		}
		views = append(views, speakerView{
			Speaker:            s.SpeakerLabel,
			TotalWords:         s.TotalWords,
			TotalDuration:      s.TotalDuration,
			ConfidenceScore:    s.ConfidenceScore,
			SpeakingPercentage: percentage,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transcript_id": t.ID.String(),
		"speakers":      views,
		"count":         len(views),
	})
}

func (h *Handler) srt(c *gin.Context) {
	h.subtitles(c, "srt")
}

func (h *Handler) vtt(c *gin.Context) {
	h.subtitles(c, "vtt")
}

// lookup fetches the transcript named by the :id param, writing the error
// response itself when it fails.
func (h *Handler) lookup(c *gin.Context) (*store.Transcript, bool) {
	t, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return nil, false
		}
		h.fail(c, err)
		return nil, false
	}
	return t, true
}

// fail maps an error onto an HTTP response. Coded errors keep their stable
// message and kind; anything else is an opaque 500.
func (h *Handler) fail(c *gin.Context, err error) {
	h.log.WithError(err).Error("request failed", map[string]interface{}{
		"path": c.FullPath(),
	})
	if ae, ok := apperr.As(err); ok {
		c.JSON(statusFor(ae.Kind), gin.H{
			"error":      ae.Message,
			"error_type": string(ae.Kind),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindDecode, apperr.KindProtocol, apperr.KindJSONDecode:
		return http.StatusBadRequest
	case apperr.KindCapacity:
		return http.StatusServiceUnavailable
	case apperr.KindUpload, apperr.KindSubmit, apperr.KindPollTransport:
		return http.StatusBadGateway
	case apperr.KindProviderJob:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
