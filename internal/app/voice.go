/**
 * @description
 * This file contains the business logic for voice synthesis. Synthesis is
 * synchronous: the vendor returns audio bytes which are relayed inline as
 * base64, and additionally uploaded to media storage (when configured) so the
 * stored message can carry a durable audio URL.
 */
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
)

// SpeechSynthesizer is the text-to-speech vendor behind the voice proxy.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, overrideKey string) ([]byte, string, error)
}

// MediaUploader stores audio bytes and returns a public URL.
type MediaUploader interface {
	UploadAudio(ctx context.Context, data []byte, contentType string) (string, error)
}

// MessageAudioAttacher backfills a stored message with its audio URL.
type MessageAudioAttacher interface {
	AttachMessageAudioURL(ctx context.Context, messageID, audioURL string) error
}

// VoiceService proxies text to the speech vendor.
type VoiceService struct {
	synth    SpeechSynthesizer
	media    MediaUploader // nil when S3 is not configured
	attacher MessageAudioAttacher
	logger   *slog.Logger
}

// NewVoiceService creates a new voice service.
func NewVoiceService(synth SpeechSynthesizer, media MediaUploader, attacher MessageAudioAttacher, logger *slog.Logger) *VoiceService {
	return &VoiceService{synth: synth, media: media, attacher: attacher, logger: logger}
}

// VoiceResult is the outcome of one synthesis call.
type VoiceResult struct {
	AudioBase64 string `json:"audio_base64"`
	ContentType string `json:"content_type"`
	AudioURL    string `json:"audio_url,omitempty"`
}

// Synthesize converts text to speech. When messageID is non-empty and upload
// succeeds, the stored message is updated with the audio URL; upload and
// attach failures degrade to inline-only audio rather than failing the call.
func (s *VoiceService) Synthesize(ctx context.Context, text, voiceID, messageID, ownKey string) (*VoiceResult, error) {
	if text == "" {
		return nil, errors.New("text is required")
	}

	audio, contentType, err := s.synth.Synthesize(ctx, text, voiceID, ownKey)
	if err != nil {
		return nil, err
	}

	result := &VoiceResult{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		ContentType: contentType,
	}

	if s.media == nil {
		return result, nil
	}

	url, err := s.media.UploadAudio(ctx, audio, contentType)
	if err != nil {
		s.logger.Warn("audio upload failed, returning inline audio only", "error", err)
		return result, nil
	}
	result.AudioURL = url

	if messageID != "" {
		if err := s.attacher.AttachMessageAudioURL(ctx, messageID, url); err != nil {
			s.logger.Warn("failed to attach audio url to message", "message_id", messageID, "error", err)
		}
	}
	return result, nil
}
