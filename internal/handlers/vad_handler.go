package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pomo-ai/pomo/internal/vad"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

// maxVADBody bounds one scored chunk. A few seconds of 16kHz mono PCM is
// well under this.
const maxVADBody = 1 << 20

type VADHandler struct {
	detector vad.Detector
	logger   *Logger.Logger
}

func NewVADHandler(detector vad.Detector, logger *Logger.Logger) *VADHandler {
	return &VADHandler{
		detector: detector,
		logger:   logger,
	}
}

// Score reads raw s16le PCM from the body and returns the voice
// probability for the chunk.
func (h *VADHandler) Score(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxVADBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Failed to read audio body"})
		return
	}

	pcm := vad.DecodeInt16(body)
	if len(pcm) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No valid audio data received"})
		return
	}

	p, err := h.detector.Score(c.Request.Context(), pcm)
	if err != nil {
		h.logger.Errorf("vad scoring failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to process audio for VAD"})
		return
	}

	c.JSON(http.StatusOK, VADResponse{VoiceProbability: p})
}
