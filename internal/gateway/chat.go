package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Attachment is a file sent along with a chat turn
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// QueryResponse is the assistant's reply to a text/image query
type QueryResponse struct {
	AIResponse string `json:"ai_response"`
	AudioURL   string `json:"audio_url"`
}

// VoiceResponse carries the transcription of a voice clip and the reply to it
type VoiceResponse struct {
	UserMessage string `json:"user_message"`
	AIResponse  string `json:"ai_response"`
}

// ChatGateway calls the medical assistant endpoints
type ChatGateway struct {
	client *Client
}

// NewChatGateway creates a new chat gateway
func NewChatGateway(client *Client) *ChatGateway {
	return &ChatGateway{client: client}
}

// Query sends text, an image, or both as one multipart request
func (g *ChatGateway) Query(ctx context.Context, text string, image *Attachment) (*QueryResponse, error) {
	req := g.client.request(ctx)
	if text != "" {
		req.SetMultipartFormData(map[string]string{"text": text})
	}
	if image != nil {
		req.SetMultipartField("image", image.Filename, image.ContentType, bytes.NewReader(image.Data))
	}

	body, err := g.client.execute(ctx, "chat.query", http.MethodPost, "/chatbot/query/", req)
	if err != nil {
		return nil, err
	}

	var resp QueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &resp, nil
}

// Voice submits a recorded clip for transcription and an answer
func (g *ChatGateway) Voice(ctx context.Context, audio Attachment, language string) (*VoiceResponse, error) {
	req := g.client.request(ctx).
		SetMultipartFormData(map[string]string{"language": language}).
		SetMultipartField("audio", audio.Filename, audio.ContentType, bytes.NewReader(audio.Data))

	body, err := g.client.execute(ctx, "chat.voice", http.MethodPost, "/conversation/voice/", req)
	if err != nil {
		return nil, err
	}

	var resp VoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode voice response: %w", err)
	}
	return &resp, nil
}
