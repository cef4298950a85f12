package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pomo-ai/pomo/internal/chat"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

type ChatHandler struct {
	conversation *chat.Conversation
	logger       *Logger.Logger
}

func NewChatHandler(conversation *chat.Conversation, logger *Logger.Logger) *ChatHandler {
	return &ChatHandler{
		conversation: conversation,
		logger:       logger,
	}
}

type chatRequest struct {
	Data     *chat.Message `json:"data"`
	ObjectID bool          `json:"object_id"`
}

// Handle streams the model's reply as plain text chunks. With object_id set
// it instead identifies the prominent object in the payload, restarts the
// conversation as that persona, and returns the role as JSON.
func (h *ChatHandler) Handle(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request data", Details: err.Error()})
		return
	}
	if req.Data == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No data provided in chat api call"})
		return
	}

	if req.ObjectID {
		role, err := h.conversation.IdentifyObject(c.Request.Context(), *req.Data)
		if err != nil {
			h.logger.Errorf("object identification failed: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Error accessing chat", Details: err.Error()})
			return
		}
		c.JSON(http.StatusOK, RoleResponse{Role: role})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	err := h.conversation.Send(c.Request.Context(), *req.Data, func(chunk string) error {
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are gone; all we can do is cut the stream and log.
		h.logger.Errorf("chat stream failed: %v", err)
	}
}
