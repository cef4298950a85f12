package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"

	"github.com/pomo-ai/pomo/internal/constants/prompts"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

// Message is one user turn: spoken or typed text plus whatever media the
// client captured alongside it, as data URIs.
type Message struct {
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
	Audio  string   `json:"audio,omitempty"`
}

// Conversation is a rolling Gemini chat seeded with the app's system prompt
// for the current persona. Object identification swaps the persona out,
// which restarts the history.
type Conversation struct {
	provider *GeminiProvider
	log      *Logger.Logger

	mu   sync.Mutex
	role string
	cs   *genai.ChatSession
}

func NewConversation(provider *GeminiProvider, log *Logger.Logger) *Conversation {
	c := &Conversation{
		provider: provider,
		log:      log,
	}
	c.restartLocked(prompts.DefaultAgentRole)
	return c
}

// restartLocked drops the history and reseeds the chat for a persona.
func (c *Conversation) restartLocked(role string) {
	c.role = role
	cs := c.provider.GetModel().StartChat()
	cs.History = []*genai.Content{
		{
			Role:  "user",
			Parts: []genai.Part{genai.Text(prompts.CONVERSATION_PROMPT.Render(role))},
		},
		{
			Role:  "model",
			Parts: []genai.Part{genai.Text(prompts.CONVERSATION_ACK.Render(role))},
		},
	}
	c.cs = cs
}

// Role returns the persona the model is currently playing.
func (c *Conversation) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Send streams one turn. Every non-empty text chunk from the model is
// handed to emit in arrival order, null token included; filtering it is the
// consumer's job. Turns are serialized, matching the single rolling chat.
func (c *Conversation) Send(ctx context.Context, msg Message, emit func(chunk string) error) error {
	parts, err := buildParts(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	iter := c.cs.SendMessageStream(ctx, parts...)
	return c.provider.Stream(iter, func(resp *genai.GenerateContentResponse) error {
		for _, chunk := range textChunks(resp) {
			if err := emit(chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

// IdentifyObject asks the model to name the most prominent object in the
// message's media, then restarts the conversation with that object as the
// persona. Returns the identified role.
func (c *Conversation) IdentifyObject(ctx context.Context, msg Message) (string, error) {
	parts, err := buildParts(msg)
	if err != nil {
		return "", err
	}
	parts = append(parts, genai.Text(prompts.OBJECT_ID_PROMPT.GetCurrentPrompt().Content))

	resp, err := c.provider.GetModel().GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("object identification failed: %w", err)
	}

	var role string
	for _, chunk := range textChunks(resp) {
		role += chunk
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return "", fmt.Errorf("object identification returned no text")
	}

	c.mu.Lock()
	c.restartLocked(role)
	c.mu.Unlock()
	c.log.Infof("conversation restarted as %q", role)
	return role, nil
}

func textChunks(resp *genai.GenerateContentResponse) []string {
	var out []string
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok && string(text) != "" {
				out = append(out, string(text))
			}
		}
	}
	return out
}

// buildParts assembles the Gemini parts for a turn: images first, then
// audio, then the text. A turn with no usable content is an error.
func buildParts(msg Message) ([]genai.Part, error) {
	var parts []genai.Part
	for _, img := range msg.Images {
		blob, err := parseDataURI(img)
		if err != nil {
			return nil, fmt.Errorf("bad image payload: %w", err)
		}
		parts = append(parts, blob)
	}
	if msg.Audio != "" {
		blob, err := parseDataURI(msg.Audio)
		if err != nil {
			return nil, fmt.Errorf("bad audio payload: %w", err)
		}
		parts = append(parts, blob)
	}
	if strings.TrimSpace(msg.Text) != "" {
		parts = append(parts, genai.Text(msg.Text))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("message has no content")
	}
	return parts, nil
}

// parseDataURI decodes a "data:<mime>;base64,<payload>" URI into a blob.
func parseDataURI(uri string) (genai.Blob, error) {
	head, payload, found := strings.Cut(uri, ",")
	if !found {
		return genai.Blob{}, fmt.Errorf("invalid data URI: %.20s", uri)
	}
	if !strings.HasPrefix(head, "data:") {
		return genai.Blob{}, fmt.Errorf("not a data URI: %.20s", uri)
	}
	mime := strings.TrimPrefix(head, "data:")
	mime = strings.TrimSuffix(mime, ";base64")
	if mime == "" {
		return genai.Blob{}, fmt.Errorf("no MIME type in data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return genai.Blob{}, fmt.Errorf("decode data URI payload: %w", err)
	}
	return genai.Blob{MIMEType: mime, Data: data}, nil
}
