package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/internal/diarize"
	"github.com/skillsenselab/scribe/internal/subtitle"
)

// subtitles renders a stored transcript as SRT or WebVTT.
func (h *Handler) subtitles(c *gin.Context, format string) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	var utterances []diarize.Utterance
	if len(t.Utterances) > 0 {
		if err := json.Unmarshal(t.Utterances, &utterances); err != nil {
			h.fail(c, fmt.Errorf("decode stored utterances: %w", err))
			return
		}
	}

	chars, _ := strconv.Atoi(c.Query("chars_per_caption"))
	cues := subtitle.Build(utterances, t.Transcript, t.AudioDuration, chars)
	if len(cues) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "transcript has no text to caption"})
		return
	}

	var body, contentType, ext string
	switch format {
	case "vtt":
		body = subtitle.VTT(cues)
		contentType = "text/vtt; charset=utf-8"
		ext = "vtt"
	default:
		body = subtitle.SRT(cues)
		contentType = "application/x-subrip; charset=utf-8"
		ext = "srt"
	}

	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transcript_%s.%s"`, t.ID.String(), ext))
	c.Data(http.StatusOK, contentType, []byte(body))
}
