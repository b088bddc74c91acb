package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spigell/interviewer/internal/ai/gemini"
	"github.com/spigell/interviewer/internal/events"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/metrics"
	"github.com/spigell/interviewer/internal/secrets"
	"github.com/spigell/interviewer/internal/speech/google"
	"github.com/spigell/interviewer/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// application holds the wired components shared by serve and practice.
type application struct {
	processor *interview.Processor
	metrics   *metrics.Metrics
	closers   []io.Closer
	logger    *zap.Logger
}

type buildOptions struct {
	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer
	// Storage overrides the configured storage driver.
	Storage string
	// NoEvents skips the Kafka publisher.
	NoEvents bool
}

func buildApp(ctx context.Context, cfg *Config, opts buildOptions, log *zap.Logger) (_ *application, err error) {
	app := &application{logger: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	deps := &interview.Deps{Logger: log}

	if opts.Registerer != nil {
		app.metrics = metrics.New(opts.Registerer)
		deps.Metrics = app.metrics
	}

	repo, err := newRepository(cfg.Storage, opts.Storage, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, repo)
	deps.Repository = repo

	bank, err := interview.LoadFallbackBank(cfg.Interview.FallbackQuestionsFile)
	if err != nil {
		return nil, err
	}
	deps.Fallbacks = bank

	if err := wireAI(ctx, cfg.AI, deps, log); err != nil {
		return nil, err
	}

	if cfg.Speech.Enabled {
		if err := wireSpeech(ctx, app, cfg.Speech, deps, log); err != nil {
			return nil, err
		}
	}

	if !opts.NoEvents {
		var rec events.Recorder
		if app.metrics != nil {
			rec = app.metrics
		}
		publisher := events.New(&events.Config{
			Enabled:   cfg.Events.Enabled,
			Brokers:   cfg.Events.Brokers,
			Topic:     cfg.Events.Topic,
			Principal: cfg.Events.Principal,
		}, rec, log.Named("events"))
		app.closers = append(app.closers, publisher)
		deps.Events = publisher
	}

	app.processor, err = interview.NewProcessor(&interview.Config{
		DefaultTotalSteps: cfg.Interview.TotalSteps,
		MaxTotalSteps:     cfg.Interview.MaxTotalSteps,
		RecentQAWindow:    cfg.Interview.RecentQAWindow,
		ProviderTimeout:   cfg.Interview.ProviderTimeout,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("building interview processor: %w", err)
	}

	return app, nil
}

func newRepository(cfg *StorageConfig, override string, log *zap.Logger) (interview.Repository, error) {
	driver := cfg.Driver
	if override != "" {
		driver = override
	}

	switch driver {
	case storageMemory:
		log.Info("using in-memory storage", zap.String("hint", "sessions are lost on exit"))
		return store.NewMemory(), nil
	case storageSQLite:
		repo, err := store.NewSQLite(cfg.Path, log.Named("store"))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage %q: %w", cfg.Path, err)
		}
		log.Info("using sqlite storage", zap.String("path", cfg.Path))
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func wireAI(ctx context.Context, cfg *AIConfig, deps *interview.Deps, log *zap.Logger) error {
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), providerNone) {
		log.Warn("ai provider disabled, questions come from the fallback pool and answers get the neutral score")
		return nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return fmt.Errorf("%w (or set ai.gemini.api-key-file)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries,
		log.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries)))
	if err != nil {
		return err
	}

	aiLog := log.Named("gemini")
	media := gemini.NewMediaAnalyzer(generator, cfg.Gemini.MaxLogLength, aiLog)

	deps.Generator = gemini.NewQuestionGenerator(generator, cfg.Gemini.MaxLogLength, aiLog)
	deps.Judge = gemini.NewJudge(generator, cfg.Gemini.MaxLogLength, aiLog)
	deps.AudioAnalyzer = media
	deps.VideoAnalyzer = media

	log.Info("gemini collaborators ready", zap.String("model", generator.Model()))
	return nil
}

func wireSpeech(ctx context.Context, app *application, cfg *SpeechConfig, deps *interview.Deps, log *zap.Logger) error {
	opts := google.Options{
		LanguageCode:    cfg.LanguageCode,
		SampleRateHertz: cfg.SampleRateHertz,
		VoiceName:       cfg.VoiceName,
	}

	transcriber, err := google.NewTranscriber(ctx, opts, log)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, transcriber)
	deps.SpeechToText = transcriber

	synthesizer, err := google.NewSynthesizer(ctx, opts, log)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, synthesizer)
	deps.TextToSpeech = synthesizer

	log.Info("google speech services ready", zap.String("language_code", cfg.LanguageCode))
	return nil
}

// Close releases components in reverse order of creation.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("closing component", zap.Error(err))
		}
	}
	a.closers = nil
}
