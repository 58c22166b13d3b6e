package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Synthesizer turns text into audio
type Synthesizer interface {
	TextToSpeech(ctx context.Context, text string, language string) ([]byte, error)
}

// Clip is one playable unit: synthesized audio or a server-hosted audio URL
type Clip struct {
	ID          string    `json:"id"`
	UtteranceID string    `json:"utterance_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	Language    string    `json:"language,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Audio       []byte    `json:"audio,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Player plays clips in order. Stop discards anything not yet played.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
}

// Engine is the single speech output shared by a session. At most one
// utterance is active: every Speak cancels the previous one first.
type Engine struct {
	synth    Synthesizer
	player   Player
	maxChunk int
	logger   *zap.Logger

	// serializes Speak, PlayURL and Cancel so utterances never overlap
	turn sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	resume chan struct{} // non-nil while paused
}

// NewEngine creates a speech engine
func NewEngine(synth Synthesizer, player Player, maxChunk int, logger *zap.Logger) *Engine {
	if maxChunk <= 0 {
		maxChunk = DefaultChunkLength
	}
	return &Engine{
		synth:    synth,
		player:   player,
		maxChunk: maxChunk,
		logger:   logger,
	}
}

// Speak cancels the current utterance and starts speaking text. It returns
// once the new utterance is running; the returned channel closes when it ends.
// The utterance outlives ctx's cancellation but keeps its values.
func (e *Engine) Speak(ctx context.Context, text, language string) <-chan struct{} {
	e.turn.Lock()
	defer e.turn.Unlock()
	e.stopCurrent()

	segments := Chunk(text, e.maxChunk)
	utteranceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	utteranceID := uuid.New().String()
	e.logger.Debug("speaking",
		zap.String("utterance_id", utteranceID),
		zap.String("language", language),
		zap.Int("segments", len(segments)),
	)

	go func() {
		defer close(done)
		defer cancel()
		for i, segment := range segments {
			if !e.waitWhilePaused(utteranceCtx) {
				return
			}
			audio, err := e.synth.TextToSpeech(utteranceCtx, segment, language)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					e.logger.Warn("speech synthesis failed, dropping utterance",
						zap.String("utterance_id", utteranceID),
						zap.Int("segment", i),
						zap.Error(err),
					)
				}
				return
			}
			if utteranceCtx.Err() != nil {
				return
			}
			clip := Clip{
				ID:          uuid.New().String(),
				UtteranceID: utteranceID,
				Text:        segment,
				Language:    language,
				ContentType: "audio/mpeg",
				Audio:       audio,
				CreatedAt:   time.Now(),
			}
			if err := e.player.Play(utteranceCtx, clip); err != nil {
				e.logger.Warn("failed to play speech segment", zap.Error(err))
				return
			}
		}
	}()

	return done
}

// PlayURL cancels the current utterance and plays a server-hosted clip instead
func (e *Engine) PlayURL(ctx context.Context, url string) error {
	e.turn.Lock()
	defer e.turn.Unlock()
	e.stopCurrent()
	if err := e.player.Play(ctx, Clip{ID: uuid.New().String(), URL: url, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}
	return nil
}

// Cancel stops the current utterance and waits for it to wind down
func (e *Engine) Cancel() {
	e.turn.Lock()
	defer e.turn.Unlock()
	e.stopCurrent()
}

func (e *Engine) stopCurrent() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	if e.resume != nil {
		close(e.resume)
		e.resume = nil
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.player.Stop()
}

// Pause holds the utterance before its next segment
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.speakingLocked() || e.resume != nil {
		return false
	}
	e.resume = make(chan struct{})
	return true
}

// Resume continues a paused utterance
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resume == nil {
		return false
	}
	close(e.resume)
	e.resume = nil
	return true
}

// Speaking reports whether an utterance is active, paused or not
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speakingLocked()
}

// Paused reports whether the active utterance is paused
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resume != nil && e.speakingLocked()
}

// Done returns a channel closed when the current utterance ends, or nil when idle
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *Engine) speakingLocked() bool {
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

func (e *Engine) waitWhilePaused(ctx context.Context) bool {
	e.mu.Lock()
	resume := e.resume
	e.mu.Unlock()
	if resume == nil {
		return ctx.Err() == nil
	}
	select {
	case <-resume:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
