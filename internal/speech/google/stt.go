// Package google adapts Google Cloud Speech-to-Text and Text-to-Speech to the interview
// collaborator contracts.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/utils"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const (
	providerName = "google"

	defaultLanguageCode    = "en-US"
	defaultSampleRateHertz = 48000
	maxAttempts            = 2
)

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	RecognizeLong(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

// speechClient adds a blocking long-running recognition to *speech.Client.
type speechClient struct {
	*speech.Client
}

func (c speechClient) RecognizeLong(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := c.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

// Options tune both speech adapters.
type Options struct {
	LanguageCode    string
	SampleRateHertz int
	VoiceName       string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.LanguageCode) == "" {
		o.LanguageCode = defaultLanguageCode
	}
	if o.SampleRateHertz <= 0 {
		o.SampleRateHertz = defaultSampleRateHertz
	}
	return o
}

// Transcriber turns recorded WebM/Opus answers into text.
type Transcriber struct {
	client recognizer
	opts   Options
	logger *zap.Logger
}

// NewTranscriber connects to Speech-to-Text with application default credentials.
func NewTranscriber(ctx context.Context, opts Options, log *zap.Logger) (*Transcriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return newTranscriber(speechClient{Client: client}, opts, log), nil
}

func newTranscriber(client recognizer, opts Options, log *zap.Logger) *Transcriber {
	return &Transcriber{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.WithProvider(log, providerName, "speech-to-text"),
	}
}

func (t *Transcriber) Name() string {
	return providerName
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio must not be empty")
	}

	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
		SampleRateHertz:            int32(t.opts.SampleRateHertz),
		LanguageCode:               t.opts.LanguageCode,
		EnableAutomaticPunctuation: true,
	}
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
	}

	var (
		resp *speechpb.RecognizeResponse
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = t.client.Recognize(ctx, &speechpb.RecognizeRequest{Config: config, Audio: content})
		if err == nil || !temporary(err) || attempt == maxAttempts {
			break
		}
		t.logger.Warn("speech recognition failed, retrying", zap.Int("attempt", attempt), zap.String("error", describe(err)))
		if waitErr := utils.WaitFor(ctx, utils.Backoff(retryDelay, attempt-1)); waitErr != nil {
			return "", waitErr
		}
	}

	var results []*speechpb.SpeechRecognitionResult
	switch {
	case err == nil:
		results = resp.GetResults()
	case tooLongForSync(err):
		// Synchronous recognition stops at about a minute of audio.
		t.logger.Debug("audio too long for synchronous recognition, switching to long-running", zap.Int("audio_bytes", len(audio)))
		long, longErr := t.client.RecognizeLong(ctx, &speechpb.LongRunningRecognizeRequest{Config: config, Audio: content})
		if longErr != nil {
			return "", fmt.Errorf("long-running recognize speech: %w", longErr)
		}
		results = long.GetResults()
	default:
		return "", fmt.Errorf("recognize speech: %w", err)
	}

	transcript := joinTranscript(results)
	t.logger.Debug("speech recognized",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("transcript_length", len(transcript)),
	)
	return transcript, nil
}

func (t *Transcriber) Close() error {
	return t.client.Close()
}

// joinTranscript concatenates the top alternative of every result.
func joinTranscript(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
