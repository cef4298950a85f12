// Command speak exercises the playback pipeline from a terminal: it streams
// text from stdin (or a chat prompt through the server) into the sentence
// buffer and plays the synthesized utterances through the default audio
// device, in order.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/speech"
	"github.com/pomo-ai/pomo/pkg/speech/audio"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "API server base URL")
		voiceID   = flag.String("voice", "", "voice id, empty for the default voice")
		prompt    = flag.String("chat", "", "send this prompt to the chat endpoint and speak the reply")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	logger := Logger.New(*debug)

	player, err := audio.NewOtoPlayer(16000, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio device init failed: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()

	voices := speech.NewVoiceSelector("")
	if *voiceID != "" {
		voices.Select(*voiceID)
	}

	session := speech.NewSession(
		speech.DefaultConfig(),
		&speech.HTTPSynthesizer{BaseURL: *serverURL},
		player,
		voices,
		logger,
	)
	defer session.Stop()

	var input io.Reader = os.Stdin
	if *prompt != "" {
		body, err := streamChat(*serverURL, *prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat request failed: %v\n", err)
			os.Exit(1)
		}
		defer body.Close()
		input = body
	}

	buffer := speech.NewSentenceBuffer(speech.DefaultSentinel, speech.DefaultWordLimit)
	reader := bufio.NewReader(input)
	chunk := make([]byte, 256)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			for _, utterance := range buffer.Write(string(chunk[:n])) {
				session.Enqueue(utterance)
			}
		}
		if err != nil {
			break
		}
	}
	for _, utterance := range buffer.Flush() {
		session.Enqueue(utterance)
	}

	// Let the queue drain before exiting.
	for session.QueueLen() > 0 || session.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}
}

func streamChat(serverURL, prompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{"text": prompt},
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(
		strings.TrimRight(serverURL, "/")+"/api/chat",
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, msg)
	}
	return resp.Body, nil
}
