package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pomo-ai/pomo/internal/chat"
	"github.com/pomo-ai/pomo/internal/config"
	"github.com/pomo-ai/pomo/internal/handlers"
	"github.com/pomo-ai/pomo/internal/live"
	"github.com/pomo-ai/pomo/internal/tts"
	"github.com/pomo-ai/pomo/internal/vad"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

// Dependencies carries everything the routes need, wired by the app.
type Dependencies struct {
	Settings     *config.Settings
	Conversation *chat.Conversation
	TTSClient    *tts.Client
	Detector     vad.Detector
	Logger       *Logger.Logger
}

// RoutesManager owns the HTTP surface and live websocket sessions.
type RoutesManager struct {
	deps     Dependencies
	upgrader websocket.Upgrader
}

func NewRoutesManager(deps Dependencies) *RoutesManager {
	return &RoutesManager{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			// The browser client runs on a different origin in dev.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func InitializeRoutes(r *gin.Engine, deps Dependencies) {
	rm := NewRoutesManager(deps)

	r.Use(handlers.RequestLogger(deps.Logger))
	r.Use(handlers.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chatHandler := handlers.NewChatHandler(deps.Conversation, deps.Logger)
	ttsHandler := handlers.NewTTSHandler(deps.TTSClient, deps.Logger)
	vadHandler := handlers.NewVADHandler(deps.Detector, deps.Logger)

	api := r.Group("/api")
	{
		api.POST("/chat", chatHandler.Handle)
		api.POST("/tts", ttsHandler.Synthesize)
		api.GET("/voices", ttsHandler.Voices)
		api.POST("/vad", vadHandler.Score)
	}

	r.GET("/ws", rm.handleWebSocket)
}

func (rm *RoutesManager) handleWebSocket(c *gin.Context) {
	conn, err := rm.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rm.deps.Logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := live.NewSession(conn, live.Options{
		Conversation: rm.deps.Conversation,
		Detector:     rm.deps.Detector,
		Threshold:    rm.deps.Settings.VAD.Threshold,
		SampleRate:   rm.deps.Settings.Speech.SampleRate,
		Log:          rm.deps.Logger,
	})
	if err := session.Run(c.Request.Context()); err != nil {
		rm.deps.Logger.Debugf("live session %s ended: %v", session.ID(), err)
	}
}
