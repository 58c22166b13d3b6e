package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// defaultVoices maps a language tag to a neural voice
var defaultVoices = map[string]string{
	"en-US": "en-US-JennyNeural",
	"en-GB": "en-GB-SoniaNeural",
	"hu-HU": "hu-HU-NoemiNeural",
	"de-DE": "de-DE-KatjaNeural",
	"es-ES": "es-ES-ElviraNeural",
	"fr-FR": "fr-FR-DeniseNeural",
}

// shortLanguages expands the two-letter tags the booking backend uses
var shortLanguages = map[string]string{
	"en": "en-US",
	"hu": "hu-HU",
	"de": "de-DE",
	"es": "es-ES",
	"fr": "fr-FR",
}

const speechOutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// SpeechServiceClient synthesizes reply audio through the Azure Speech REST API
type SpeechServiceClient struct {
	region      string
	ttsEndpoint string
	http        *resty.Client
	logger      *zap.Logger
}

// NewSpeechServiceClient creates a new Azure Speech Service client
func NewSpeechServiceClient(subscriptionKey, region string, logger *zap.Logger) (*SpeechServiceClient, error) {
	if subscriptionKey == "" || region == "" {
		return nil, fmt.Errorf("subscriptionKey and region are required")
	}

	http := resty.New().
		SetTimeout(60*time.Second).
		SetRetryCount(0).
		SetHeader("Ocp-Apim-Subscription-Key", subscriptionKey).
		SetHeader("User-Agent", "Patient-Portal")

	return &SpeechServiceClient{
		region:      region,
		ttsEndpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com", region),
		http:        http,
		logger:      logger,
	}, nil
}

// TextToSpeech converts text to MP3 audio spoken in language
func (c *SpeechServiceClient) TextToSpeech(ctx context.Context, text string, language string) ([]byte, error) {
	language = ResolveLanguage(language)
	startTime := time.Now()

	ssml, err := buildSSML(text, language, VoiceFor(language))
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/ssml+xml").
		SetHeader("X-Microsoft-OutputFormat", speechOutputFormat).
		SetBody(ssml).
		Post(c.ttsEndpoint + "/cognitiveservices/v1")
	if err != nil {
		c.logger.Error("text-to-speech request failed", zap.Error(err))
		return nil, fmt.Errorf("text-to-speech request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		c.logger.Error("text-to-speech request failed",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("response", resp.String()),
		)
		return nil, fmt.Errorf("text-to-speech request failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("text-to-speech synthesis completed",
		zap.String("language", language),
		zap.Int("audio_size_bytes", len(resp.Body())),
		zap.Duration("processing_time", time.Since(startTime)),
	)

	return resp.Body(), nil
}

// ResolveLanguage turns "hu" into "hu-HU"; full tags pass through
func ResolveLanguage(language string) string {
	language = strings.TrimSpace(language)
	if full, ok := shortLanguages[strings.ToLower(language)]; ok {
		return full
	}
	if language == "" {
		return "en-US"
	}
	return language
}

// VoiceFor picks the neural voice for a language tag
func VoiceFor(language string) string {
	if voice, ok := defaultVoices[language]; ok {
		return voice
	}
	return fmt.Sprintf("%s-Standard-A", language)
}

func buildSSML(text, language, voice string) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to escape speech text: %w", err)
	}
	return fmt.Sprintf(`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		language, language, voice, escaped.String()), nil
}
