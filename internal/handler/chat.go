package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/chat"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

const (
	maxImageSize = 10 << 20
	maxChunkSize = 1 << 20
)

var errTooLarge = errors.New("upload is too large")

// ChatHandler drives the medical chat and its speech output
type ChatHandler struct {
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(logger *zap.Logger) *ChatHandler {
	return &ChatHandler{logger: logger}
}

// ChatTurnResponse is the chat after a turn, with the error of a failed turn
type ChatTurnResponse struct {
	Chat  chat.State     `json:"chat"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// PlaybackResponse carries the clips queued since the last poll
type PlaybackResponse struct {
	Clips []speech.Clip `json:"clips"`
}

// LanguageRequest carries a voice language
type LanguageRequest struct {
	Language string `json:"language"`
}

// AudioRequest toggles spoken replies
type AudioRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func chatState(ctl *chat.Controller) chat.State {
	st := ctl.State()
	if st.Transcript == nil {
		st.Transcript = []model.Message{}
	}
	return st
}

func (h *ChatHandler) render(c *gin.Context, err error) {
	resp := ChatTurnResponse{Chat: chatState(currentSession(c).Chat)}
	if err != nil {
		_ = c.Error(err)
		status, body := classify(err)
		resp.Error = &body
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetChat returns the chat view
func (h *ChatHandler) GetChat(c *gin.Context) {
	c.JSON(http.StatusOK, chatState(currentSession(c).Chat))
}

// PostSend submits a multipart turn with optional text and image fields
func (h *ChatHandler) PostSend(c *gin.Context) {
	text := c.PostForm("text")

	var image *chat.Image
	if fh, err := c.FormFile("image"); err == nil {
		image, err = readImage(fh, c.PostForm("image_type"))
		if err != nil {
			h.logger.Error("failed to read image upload", zap.Error(err))
			badRequest(c, err)
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		badRequest(c, err)
		return
	}

	if text == "" && image == nil {
		var req struct {
			Text string `json:"text"`
		}
		if c.ContentType() == gin.MIMEJSON {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			text = req.Text
		}
	}

	h.render(c, currentSession(c).Chat.Send(c.Request.Context(), text, image))
}

func readImage(fh *multipart.FileHeader, kind string) (*chat.Image, error) {
	if fh.Size > maxImageSize {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if kind == "" {
		kind = chat.DefaultImageKind
	}
	return &chat.Image{
		Attachment: gateway.Attachment{Filename: fh.Filename, ContentType: contentType, Data: data},
		Kind:       kind,
	}, nil
}

// PostVoiceStart takes the microphone
func (h *ChatHandler) PostVoiceStart(c *gin.Context) {
	h.render(c, currentSession(c).Chat.StartRecording(c.Request.Context()))
}

// PostVoiceChunk appends one encoded audio chunk to the open recording
func (h *ChatHandler) PostVoiceChunk(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkSize+1))
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(data) > maxChunkSize {
		badRequest(c, fmt.Errorf("%w: chunk exceeds %d bytes", errTooLarge, maxChunkSize))
		return
	}
	if len(data) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	if err := currentSession(c).Microphone.Push(data); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostVoiceStop ends the recording and sends it to the assistant
func (h *ChatHandler) PostVoiceStop(c *gin.Context) {
	var req LanguageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.render(c, currentSession(c).Chat.StopRecording(c.Request.Context(), req.Language))
}

// PostSpeak reads one assistant message aloud
func (h *ChatHandler) PostSpeak(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, err)
		return
	}
	h.render(c, currentSession(c).Chat.Speak(c.Request.Context(), index))
}

// PostSpeech pauses, resumes or cancels speech output
func (h *ChatHandler) PostSpeech(c *gin.Context) {
	ctl := currentSession(c).Chat
	switch action := c.Param("action"); action {
	case "pause":
		ctl.PauseSpeech()
	case "resume":
		ctl.ResumeSpeech()
	case "cancel":
		ctl.CancelSpeech()
	default:
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("unknown speech action %q", action),
		})
		return
	}
	c.JSON(http.StatusOK, chatState(ctl))
}

// PostAudio turns spoken replies on or off
func (h *ChatHandler) PostAudio(c *gin.Context) {
	var req AudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctl := currentSession(c).Chat
	ctl.SetAudioEnabled(*req.Enabled)
	c.JSON(http.StatusOK, chatState(ctl))
}

// PostLanguage sets the voice language
func (h *ChatHandler) PostLanguage(c *gin.Context) {
	var req LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctl := currentSession(c).Chat
	ctl.SetLanguage(req.Language)
	c.JSON(http.StatusOK, chatState(ctl))
}

// GetPlayback drains the clips queued for the browser
func (h *ChatHandler) GetPlayback(c *gin.Context) {
	c.JSON(http.StatusOK, PlaybackResponse{Clips: currentSession(c).Playback.Drain()})
}
