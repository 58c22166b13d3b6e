package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// DefaultLanguage is the voice used for replies until the patient picks another
const DefaultLanguage = "en-US"

// DefaultImageKind describes an attached image when the client does not say
const DefaultImageKind = "injury"

// Bot turns shown when the assistant gives nothing usable
const (
	NoResponseMessage  = "Sorry, I couldn't process your request."
	QueryFailedMessage = "Sorry, I'm having trouble reaching the medical assistant. Please try again."
	VoiceFailedMessage = "Sorry, I couldn't process your voice message. Please try again."
)

// VoicePlaceholder is the user turn shown while a recording is transcribed
const VoicePlaceholder = "Processing voice message..."

const (
	voiceClipType       = "audio/webm"
	voiceClipFilename   = "voice-message.webm"
	archiveFolderImage  = "chat-images"
	archiveFolderVoice  = "voice-messages"
	imageAttachedSuffix = " [Image attached]"
)

var (
	// ErrEmptyInput rejects a turn with neither text nor image
	ErrEmptyInput = errors.New("a message needs text or an image")
	// ErrBusy means a chat or voice request is still running
	ErrBusy = errors.New("a chat request is already in progress")
	// ErrEmptyRecording is returned when a recording stops with no chunks
	ErrEmptyRecording = errors.New("recording contains no audio")
	// ErrNotSpeakable rejects read-aloud of a user turn
	ErrNotSpeakable = errors.New("only assistant messages can be read aloud")
	// ErrNoSuchMessage means the transcript index is out of range
	ErrNoSuchMessage = errors.New("message does not exist")
)

// Assistant is the medical assistant backend
type Assistant interface {
	Query(ctx context.Context, text string, image *gateway.Attachment) (*gateway.QueryResponse, error)
	Voice(ctx context.Context, audio gateway.Attachment, language string) (*gateway.VoiceResponse, error)
}

// Speaker is the session's speech output
type Speaker interface {
	Speak(ctx context.Context, text, language string) <-chan struct{}
	PlayURL(ctx context.Context, url string) error
	Pause() bool
	Resume() bool
	Cancel()
	Speaking() bool
	Paused() bool
}

// Archive keeps a copy of uploaded media and returns a reference to it
type Archive interface {
	Archive(ctx context.Context, folder, name, contentType string, data []byte) (string, error)
}

// Image is a picture attached to a chat turn
type Image struct {
	gateway.Attachment
	Kind string
}

// State is a copy of the chat view
type State struct {
	Transcript   []model.Message `json:"messages"`
	Busy         bool            `json:"busy"`
	Recording    bool            `json:"recording"`
	AudioEnabled bool            `json:"audio_enabled"`
	Speaking     bool            `json:"speaking"`
	Paused       bool            `json:"paused"`
	Language     string          `json:"language"`
}

// Controller runs the medical chat of one session
type Controller struct {
	assistant Assistant
	speaker   Speaker
	mic       *speech.Microphone
	archive   Archive
	logger    *zap.Logger

	mu           sync.Mutex
	transcript   []model.Message
	busy         bool
	audioEnabled bool
	language     string
	recording    *speech.Recording
	captured     chan []byte
}

// NewController creates a chat controller. archive may be nil.
func NewController(assistant Assistant, speaker Speaker, mic *speech.Microphone, archive Archive, logger *zap.Logger) *Controller {
	return &Controller{
		assistant:    assistant,
		speaker:      speaker,
		mic:          mic,
		archive:      archive,
		logger:       logger,
		audioEnabled: true,
		language:     DefaultLanguage,
	}
}

// State returns a copy of the chat view
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Transcript:   append([]model.Message(nil), c.transcript...),
		Busy:         c.busy,
		Recording:    c.recording != nil,
		AudioEnabled: c.audioEnabled,
		Speaking:     c.speaker.Speaking(),
		Paused:       c.speaker.Paused(),
		Language:     c.language,
	}
}

// SetLanguage sets the voice used for spoken replies
func (c *Controller) SetLanguage(language string) {
	if language == "" {
		return
	}
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
}

// SetAudioEnabled toggles spoken replies. Disabling stops current speech.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.audioEnabled = enabled
	c.mu.Unlock()
	if !enabled {
		c.speaker.Cancel()
	}
}

// Send submits a text and/or image turn to the assistant
func (c *Controller) Send(ctx context.Context, text string, image *Image) error {
	text = strings.TrimSpace(text)
	if text == "" && (image == nil || len(image.Data) == 0) {
		return ErrEmptyInput
	}
	if image != nil && len(image.Data) == 0 {
		image = nil
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	turn := model.UserMessage(userTurnText(text, image))
	var attachment *gateway.Attachment
	if image != nil {
		attachment = &image.Attachment
		turn.MediaRef = c.store(ctx, archiveFolderImage, image.Attachment)
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, turn)
	c.mu.Unlock()

	resp, err := c.assistant.Query(ctx, text, attachment)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.transcript = append(c.transcript, model.BotMessage(QueryFailedMessage))
		c.mu.Unlock()
		c.logger.Error("chat query failed", zap.Bool("has_image", image != nil), zap.Error(err))
		return fmt.Errorf("failed to query assistant: %w", err)
	}

	reply := strings.TrimSpace(resp.AIResponse)
	if reply == "" {
		c.transcript = append(c.transcript, model.BotMessage(NoResponseMessage))
		c.mu.Unlock()
		c.logger.Warn("assistant returned an empty reply")
		return nil
	}
	c.transcript = append(c.transcript, model.BotMessage(reply))
	audio, language := c.audioEnabled, c.language
	c.mu.Unlock()

	if audio {
		c.respondAloud(ctx, reply, resp.AudioURL, language)
	}
	return nil
}

// StartRecording takes the microphone and buffers the uploaded audio until
// StopRecording. The recording occupies the request slot.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}

	rec, err := c.mic.Acquire(ctx)
	if err != nil {
		return err
	}

	captured := make(chan []byte, 1)
	go collect(rec.Chunks(), captured)

	c.busy = true
	c.recording = rec
	c.captured = captured
	c.logger.Info("voice recording started")
	return nil
}

func collect(chunks <-chan []byte, out chan<- []byte) {
	var buf bytes.Buffer
	for chunk := range chunks {
		buf.Write(chunk)
	}
	out <- buf.Bytes()
}

// StopRecording ends the recording and submits the clip to the voice endpoint
func (c *Controller) StopRecording(ctx context.Context, language string) error {
	c.mu.Lock()
	rec, captured := c.recording, c.captured
	if rec == nil {
		c.mu.Unlock()
		return speech.ErrNotRecording
	}
	c.recording, c.captured = nil, nil
	if language == "" {
		language = c.language
	}
	c.mu.Unlock()

	rec.Release()
	audio := <-captured

	if len(audio) == 0 {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		return ErrEmptyRecording
	}

	clip := gateway.Attachment{Filename: voiceClipFilename, ContentType: voiceClipType, Data: audio}
	placeholder := model.UserMessage(VoicePlaceholder)
	placeholder.MediaRef = c.store(ctx, archiveFolderVoice, clip)

	c.mu.Lock()
	c.transcript = append(c.transcript, placeholder)
	index := len(c.transcript) - 1
	c.mu.Unlock()

	resp, err := c.assistant.Voice(ctx, clip, language)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.transcript = append(c.transcript, model.BotMessage(VoiceFailedMessage))
		c.mu.Unlock()
		c.logger.Error("voice message failed", zap.Int("audio_size_bytes", len(audio)), zap.Error(err))
		return fmt.Errorf("failed to send voice message: %w", err)
	}

	if transcription := strings.TrimSpace(resp.UserMessage); transcription != "" {
		c.transcript[index].Content = transcription
	}
	reply := strings.TrimSpace(resp.AIResponse)
	if reply == "" {
		reply = NoResponseMessage
	}
	c.transcript = append(c.transcript, model.BotMessage(reply))
	audioOn := c.audioEnabled && reply != NoResponseMessage
	c.mu.Unlock()

	c.logger.Info("voice message processed",
		zap.String("language", language),
		zap.Int("audio_size_bytes", len(audio)),
	)
	if audioOn {
		c.speaker.Speak(ctx, reply, language)
	}
	return nil
}

// Speak reads the assistant message at index aloud
func (c *Controller) Speak(ctx context.Context, index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.transcript) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchMessage, index)
	}
	msg := c.transcript[index]
	language := c.language
	c.mu.Unlock()

	if msg.Role != model.MessageRoleBot {
		return ErrNotSpeakable
	}
	c.speaker.Speak(ctx, msg.Content, language)
	return nil
}

func (c *Controller) PauseSpeech() bool  { return c.speaker.Pause() }
func (c *Controller) ResumeSpeech() bool { return c.speaker.Resume() }
func (c *Controller) CancelSpeech()      { c.speaker.Cancel() }

// Close stops speech and releases the microphone
func (c *Controller) Close() {
	c.speaker.Cancel()

	c.mu.Lock()
	rec, captured := c.recording, c.captured
	c.recording, c.captured = nil, nil
	if rec != nil {
		c.busy = false
	}
	c.mu.Unlock()

	if rec != nil {
		rec.Release()
		<-captured
	}
}

func (c *Controller) respondAloud(ctx context.Context, reply, audioURL, language string) {
	if audioURL != "" {
		if err := c.speaker.PlayURL(ctx, audioURL); err != nil {
			c.logger.Warn("failed to queue reply audio", zap.String("audio_url", audioURL), zap.Error(err))
		}
		return
	}
	c.speaker.Speak(ctx, reply, language)
}

// store archives media when an archive is configured. Failures only lose the copy.
func (c *Controller) store(ctx context.Context, folder string, att gateway.Attachment) string {
	if c.archive == nil {
		return ""
	}
	name := uuid.NewString()
	if att.Filename != "" {
		name += "-" + att.Filename
	}
	ref, err := c.archive.Archive(ctx, folder, name, att.ContentType, att.Data)
	if err != nil {
		c.logger.Warn("failed to archive chat media", zap.String("folder", folder), zap.Error(err))
		return ""
	}
	return ref
}

func userTurnText(text string, image *Image) string {
	switch {
	case image == nil:
		return text
	case text != "":
		return text + imageAttachedSuffix
	default:
		kind := strings.TrimSpace(image.Kind)
		if kind == "" {
			kind = DefaultImageKind
		}
		return fmt.Sprintf("Analyzing %s image...", kind)
	}
}
