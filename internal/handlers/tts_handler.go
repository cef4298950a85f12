package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pomo-ai/pomo/internal/tts"
	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/speech"
)

type TTSHandler struct {
	client *tts.Client
	logger *Logger.Logger
}

func NewTTSHandler(client *tts.Client, logger *Logger.Logger) *TTSHandler {
	return &TTSHandler{
		client: client,
		logger: logger,
	}
}

// Synthesize turns one utterance into audio bytes. The request carries the
// neighbor texts the playback pipeline linked, joined here into the
// conditioning fields the synthesis API understands.
func (h *TTSHandler) Synthesize(c *gin.Context) {
	var req speech.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request data", Details: err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No text provided in TTS call"})
		return
	}

	audio, err := h.client.Synthesize(c.Request.Context(), tts.SynthesisParams{
		Text:         req.Text,
		PreviousText: strings.Join(req.PreviousTexts, " "),
		NextText:     strings.Join(req.NextTexts, " "),
		VoiceID:      req.VoiceID,
	})
	if err != nil {
		h.logger.Errorf("synthesis failed for utterance %d: %v", req.Index, err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Failed to synthesize speech"})
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", audio)
}

// Voices lists the selectable voice catalogue.
func (h *TTSHandler) Voices(c *gin.Context) {
	voices, err := h.client.Voices(c.Request.Context())
	if err != nil {
		h.logger.Errorf("voice listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to fetch voices"})
		return
	}
	c.JSON(http.StatusOK, voices)
}
