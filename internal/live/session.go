// Package live runs the websocket session behind /ws: mic audio and
// snapshots come in, voice activity gates when a turn is assembled, and the
// model's streamed reply goes back out as JSON events.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	"github.com/pomo-ai/pomo/internal/chat"
	"github.com/pomo-ai/pomo/internal/vad"
	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/audioring"
)

// Session phases.
//
//	idle -> listening -> processing -> speaking -> idle
const (
	StateIdle       = "idle"
	StateListening  = "listening"
	StateProcessing = "processing"
	StateSpeaking   = "speaking"

	eventVoice   = "voice"
	eventSilence = "silence"
	eventRespond = "respond"
	eventDone    = "done"
	eventCancel  = "cancel"
)

// maxRecentImages bounds the snapshot cache. One is enough: the newest
// frame is what the user is looking at.
const maxRecentImages = 1

type Options struct {
	Conversation *chat.Conversation
	Detector     vad.Detector
	Threshold    float64
	SampleRate   int
	SilenceAfter time.Duration
	BufferSize   int
	Log          *Logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = 0.5
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.SilenceAfter <= 0 {
		o.SilenceAfter = 1200 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1 << 20
	}
	return o
}

type Session struct {
	id      uuid.UUID
	opts    Options
	conn    *websocket.Conn
	machine *fsm.FSM
	ring    audioring.Ring
	log     *Logger.Logger

	writeMu sync.Mutex

	mu            sync.Mutex
	snapshots     []string // data URIs, newest last
	outputEnabled bool
	lastVoice     time.Time
	turnSeq       int
}

type controlMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
}

func NewSession(conn *websocket.Conn, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:            uuid.New(),
		opts:          opts,
		conn:          conn,
		ring:          audioring.New(opts.BufferSize),
		log:           opts.Log,
		outputEnabled: true,
	}
	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventVoice, Src: []string{StateIdle}, Dst: StateListening},
			{Name: eventSilence, Src: []string{StateListening}, Dst: StateProcessing},
			{Name: eventRespond, Src: []string{StateProcessing}, Dst: StateSpeaking},
			{Name: eventDone, Src: []string{StateProcessing, StateSpeaking}, Dst: StateIdle},
			{Name: eventCancel, Src: []string{StateListening, StateProcessing, StateSpeaking}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.sendEvent("state", map[string]string{"state": e.Dst})
			},
		},
	)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current phase name.
func (s *Session) State() string { return s.machine.Current() }

// Run reads frames until the connection dies or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.log.Infof("live session %s started", s.id)
	defer s.log.Infof("live session %s closed", s.id)

	s.sendEvent("state", map[string]string{"state": StateIdle})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		switch msgType {
		case websocket.BinaryMessage:
			frame, err := ParseFrame(data)
			if err != nil {
				s.sendEvent("error", map[string]string{"message": err.Error()})
				continue
			}
			s.handleFrame(ctx, frame)
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendEvent("error", map[string]string{"message": "malformed control message"})
				continue
			}
			s.handleControl(ctx, msg)
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameAudio:
		s.handleAudio(ctx, frame.Payload)
	case FrameSnapshot:
		s.cacheSnapshot(frame.Payload)
	}
}

func (s *Session) cacheSnapshot(payload []byte) {
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)
	s.mu.Lock()
	s.snapshots = append(s.snapshots, uri)
	if len(s.snapshots) > maxRecentImages {
		s.snapshots = s.snapshots[len(s.snapshots)-maxRecentImages:]
	}
	s.mu.Unlock()
}

func (s *Session) recentSnapshots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.snapshots...)
}

func (s *Session) handleAudio(ctx context.Context, payload []byte) {
	pcm := vad.DecodeInt16(payload)
	p, err := s.opts.Detector.Score(ctx, pcm)
	if err != nil {
		s.log.Warnf("vad scoring failed: %v", err)
		return
	}

	now := time.Now()
	voiced := p >= s.opts.Threshold

	if voiced {
		s.mu.Lock()
		s.lastVoice = now
		s.mu.Unlock()
		if s.machine.Current() == StateIdle {
			_ = s.machine.Event(ctx, eventVoice)
		}
	}

	if s.machine.Current() == StateListening {
		err := s.ring.Enqueue(audioring.Chunk{
			Data:       payload,
			Timestamp:  now,
			SampleRate: int32(s.opts.SampleRate),
			Channels:   1,
		})
		if err != nil {
			s.log.Warnf("audio buffer rejected chunk: %v", err)
		}

		s.mu.Lock()
		quiet := now.Sub(s.lastVoice) >= s.opts.SilenceAfter
		s.mu.Unlock()
		if quiet {
			if err := s.machine.Event(ctx, eventSilence); err == nil {
				go s.finishTurn(ctx)
			}
		}
	}
}

// finishTurn assembles the buffered audio and cached snapshot into one chat
// turn and streams the reply back.
func (s *Session) finishTurn(ctx context.Context) {
	chunks := s.ring.Drain()
	var pcm []byte
	for _, c := range chunks {
		pcm = append(pcm, c.Data...)
	}
	if len(pcm) == 0 {
		_ = s.machine.Event(ctx, eventDone)
		return
	}

	msg := chat.Message{
		Images: s.recentSnapshots(),
		Audio: fmt.Sprintf("data:audio/l16;rate=%d;base64,%s",
			s.opts.SampleRate, base64.StdEncoding.EncodeToString(pcm)),
	}
	s.streamReply(ctx, msg)
}

func (s *Session) streamReply(ctx context.Context, msg chat.Message) {
	s.mu.Lock()
	s.turnSeq++
	turn := s.turnSeq
	s.mu.Unlock()

	started := false
	seq := 0
	err := s.opts.Conversation.Send(ctx, msg, func(chunk string) error {
		if !started {
			started = true
			_ = s.machine.Event(ctx, eventRespond)
		}
		seq++
		return s.send(outboundDelta{Type: "chat_delta", Turn: turn, Index: seq, Text: chunk})
	})
	if err != nil {
		s.log.Errorf("chat turn %d failed: %v", turn, err)
		s.sendEvent("error", map[string]string{"message": "chat failed"})
	}
	_ = s.send(outboundDelta{Type: "chat_done", Turn: turn})
	_ = s.machine.Event(ctx, eventDone)
}

func (s *Session) handleControl(ctx context.Context, msg controlMessage) {
	switch msg.Type {
	case "text":
		// Typed input skips voice gating entirely.
		if msg.Text == "" {
			return
		}
		go s.streamReply(ctx, chat.Message{Text: msg.Text, Images: s.recentSnapshots()})
	case "toggle_output":
		if msg.Enabled == nil {
			return
		}
		s.mu.Lock()
		s.outputEnabled = *msg.Enabled
		s.mu.Unlock()
		if !*msg.Enabled && s.machine.Current() != StateIdle {
			_ = s.machine.Event(ctx, eventCancel)
			s.ring.Drain()
		}
		s.sendEvent("output", map[string]bool{"enabled": *msg.Enabled})
	case "identify_object":
		go s.identifyObject(ctx)
	default:
		s.sendEvent("error", map[string]string{"message": "unknown control message: " + msg.Type})
	}
}

func (s *Session) identifyObject(ctx context.Context) {
	images := s.recentSnapshots()
	if len(images) == 0 {
		s.sendEvent("error", map[string]string{"message": "no snapshot to identify"})
		return
	}
	role, err := s.opts.Conversation.IdentifyObject(ctx, chat.Message{Images: images})
	if err != nil {
		s.log.Errorf("object identification failed: %v", err)
		s.sendEvent("error", map[string]string{"message": "object identification failed"})
		return
	}
	s.sendEvent("role", map[string]string{"role": role})
}

// OutputEnabled reports the client-requested playback gate.
func (s *Session) OutputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputEnabled
}

type outboundDelta struct {
	Type  string `json:"type"`
	Turn  int    `json:"turn"`
	Index int    `json:"index,omitempty"`
	Text  string `json:"text,omitempty"`
}

type outboundEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (s *Session) sendEvent(name string, payload any) {
	if err := s.send(outboundEvent{Type: name, Payload: payload}); err != nil {
		s.log.Debugf("event %s not delivered: %v", name, err)
	}
}

func (s *Session) send(v any) error {
	if s.conn == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}
