package gemini

import (
	"context"
	_ "embed"
	"net/http"
	"strings"

	"github.com/spigell/interviewer/internal/utils"

	"go.uber.org/zap"
)

const (
	mediaSystem = "You assess how interview candidates communicate. You answer with JSON only."

	defaultAudioMIME = "audio/webm"
	defaultVideoMIME = "video/webm"
)

var (
	//go:embed prompts/audio.md
	audioPrompt string
	//go:embed prompts/video.md
	videoPrompt string
)

type mediaGenerator interface {
	GenerateContentWithMedia(ctx context.Context, system, message string, media []byte, mimeType string) (string, error)
}

// MediaAnalyzer rates spoken delivery and on-camera presentation with Gemini.
// It implements both ai.AudioAnalyzer and ai.VideoAnalyzer.
type MediaAnalyzer struct {
	generator mediaGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewMediaAnalyzer(generator mediaGenerator, maxLogLength int, logger *zap.Logger) *MediaAnalyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MediaAnalyzer{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

func (m *MediaAnalyzer) Name() string {
	return providerName
}

func (m *MediaAnalyzer) ScoreAudio(ctx context.Context, audio []byte) (float64, error) {
	return m.score(ctx, audioPrompt, audio, mediaType(audio, "audio/", defaultAudioMIME))
}

func (m *MediaAnalyzer) ScoreVideo(ctx context.Context, video []byte) (float64, error) {
	return m.score(ctx, videoPrompt, video, mediaType(video, "video/", defaultVideoMIME))
}

func (m *MediaAnalyzer) score(ctx context.Context, prompt string, media []byte, mimeType string) (float64, error) {
	m.logger.Debug("gemini media request",
		zap.String("mime_type", mimeType),
		zap.Int("media_bytes", len(media)),
	)

	raw, err := m.generator.GenerateContentWithMedia(ctx, mediaSystem, prompt, media, mimeType)
	if err != nil {
		return 0, err
	}

	m.logger.Debug("gemini media response",
		zap.String("mime_type", mimeType),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	parsed, err := parseScored(raw)
	if err != nil {
		return 0, err
	}
	return *parsed.Score, nil
}

// mediaType sniffs the MIME type of media, keeping the sniffed value only when it belongs to
// the expected family.
func mediaType(media []byte, family, fallback string) string {
	sniffed := http.DetectContentType(media)
	if i := strings.Index(sniffed, ";"); i != -1 {
		sniffed = sniffed[:i]
	}
	if strings.HasPrefix(sniffed, family) {
		return sniffed
	}
	return fallback
}
