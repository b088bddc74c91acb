package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/utils"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const retryDelay = 200 * time.Millisecond

type speechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// Synthesizer vocalizes questions as MP3 audio.
type Synthesizer struct {
	client speechSynthesizer
	opts   Options
	logger *zap.Logger
}

// NewSynthesizer connects to Text-to-Speech with application default credentials.
func NewSynthesizer(ctx context.Context, opts Options, log *zap.Logger) (*Synthesizer, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	return newSynthesizer(client, opts, log), nil
}

func newSynthesizer(client speechSynthesizer, opts Options, log *zap.Logger) *Synthesizer {
	return &Synthesizer{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.WithProvider(log, providerName, "text-to-speech"),
	}
}

func (s *Synthesizer) Name() string {
	return providerName
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.opts.LanguageCode,
			Name:         s.opts.VoiceName,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	var (
		resp *texttospeechpb.SynthesizeSpeechResponse
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = s.client.SynthesizeSpeech(ctx, req)
		if err == nil || !temporary(err) || attempt == maxAttempts {
			break
		}
		s.logger.Warn("speech synthesis failed, retrying", zap.Int("attempt", attempt), zap.String("error", describe(err)))
		if waitErr := utils.WaitFor(ctx, utils.Backoff(retryDelay, attempt-1)); waitErr != nil {
			return nil, waitErr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, errors.New("text-to-speech returned no audio")
	}

	s.logger.Debug("speech synthesized",
		zap.Int("text_length", len(text)),
		zap.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}

func (s *Synthesizer) Close() error {
	return s.client.Close()
}
