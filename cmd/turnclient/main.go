// turnclient opens a session on a running secretary and posts WAV files
// to it as consecutive turns, saving each spoken reply.
package main

import (
	"bytes"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

type turnResponse struct {
	TurnID        string  `json:"turnId"`
	State         string  `json:"state"`
	UserText      string  `json:"userText"`
	AssistantText string  `json:"assistantText"`
	Fallback      bool    `json:"fallback"`
	Degraded      bool    `json:"degraded"`
	Error         string  `json:"error"`
	Audio         string  `json:"audio"`
	AudioSeconds  float64 `json:"audioSeconds"`
	DurationMs    int64   `json:"durationMs"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Secretary HTTP address")
	out := flag.String("out", "reply", "Output prefix; reply n is written to <out>-<n>.wav")
	language := flag.String("language", "", "Language hint")
	encoding := flag.String("encoding", "", "Raw body encoding (pcm16, ulaw, alaw); empty sends WAV")
	sampleRate := flag.Int("sample-rate", 8000, "Sample rate for raw bodies")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: turnclient [flags] file [file ...]")
	}

	client := &http.Client{Timeout: 5 * time.Minute}

	resp, err := client.Post(*server+"/v1/sessions", "application/json", nil)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	var session struct {
		SessionID string `json:"sessionId"`
	}
	if err := decode(resp, http.StatusCreated, &session); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("Session %s", session.SessionID)

	q := url.Values{}
	if *language != "" {
		q.Set("language", *language)
	}
	if *encoding != "" {
		q.Set("encoding", *encoding)
		q.Set("sample_rate", fmt.Sprint(*sampleRate))
	}
	target := fmt.Sprintf("%s/v1/sessions/%s/turns?%s", *server, session.SessionID, q.Encode())

	for i, path := range flag.Args() {
		body, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		resp, err := client.Post(target, "audio/wav", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Turn %d failed: %v", i+1, err)
		}
		var turn turnResponse
		if err := decode(resp, 0, &turn); err != nil {
			log.Fatalf("Turn %d failed: %v", i+1, err)
		}

		log.Printf("[%s] %s in %dms", turn.TurnID, turn.State, turn.DurationMs)
		log.Printf("  you:       %s", turn.UserText)
		log.Printf("  secretary: %s", turn.AssistantText)
		if turn.Error != "" {
			log.Printf("  error:     %s", turn.Error)
		}
		if turn.Audio == "" {
			continue
		}
		wav, err := base64.StdEncoding.DecodeString(turn.Audio)
		if err != nil {
			log.Fatalf("Bad audio in turn %d: %v", i+1, err)
		}
		name := fmt.Sprintf("%s-%d.wav", *out, i+1)
		if err := os.WriteFile(name, wav, 0o644); err != nil {
			log.Fatalf("Failed to save %s: %v", name, err)
		}
		log.Printf("  audio:     %s (%.1fs)", name, turn.AudioSeconds)
	}
}

// decode reads a JSON body. want == 0 accepts 200 and 422, the two turn outcomes.
func decode(resp *http.Response, want int, v any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	ok := resp.StatusCode == want ||
		(want == 0 && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusUnprocessableEntity))
	if !ok {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return sonic.Unmarshal(data, v)
}
