package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"virtual-secretary/internal/config"
	"virtual-secretary/internal/events"
	"virtual-secretary/internal/observability/logging"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/conversation"
	"virtual-secretary/internal/service/llm"
	"virtual-secretary/internal/service/llm/gemini"
	llmmock "virtual-secretary/internal/service/llm/mock"
	"virtual-secretary/internal/service/llm/openai"
	"virtual-secretary/internal/service/stt"
	"virtual-secretary/internal/service/stt/google"
	sttmock "virtual-secretary/internal/service/stt/mock"
	"virtual-secretary/internal/service/stt/whisper"
	"virtual-secretary/internal/service/tts"
	ttsmock "virtual-secretary/internal/service/tts/mock"
	"virtual-secretary/internal/service/tts/xtts"
	"virtual-secretary/internal/service/voice"
)

// Application holds process-wide state for the service: the backends
// loaded once at startup and the session manager sharing them.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Metrics     *metrics.Metrics

	Transcriber *stt.Client
	Synthesizer *tts.Synthesizer
	LLM         llm.Backend
	Publisher   *events.Publisher
	Sessions    *conversation.Manager

	closers []io.Closer
	ready   atomic.Bool
}

// New validates cfg and constructs the application, registering its
// metrics on reg. Configuration errors are returned as
// *config.ConfigurationError and are fatal.
func New(ctx context.Context, cfg *config.Configuration, reg prometheus.Registerer) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.NewMetrics(reg),
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("component", "application").
		Str("method", "New").
		Logger()

	if err := a.build(ctx); err != nil {
		a.closeAll()
		return nil, err
	}

	appLogger.Info().
		Str("stt", a.Transcriber.Backend()).
		Str("llm", a.LLM.Name()).
		Str("tts", a.Synthesizer.Backend()).
		Int("voiceSamples", len(a.Synthesizer.Samples())).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Virtual secretary application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	a.Logger = logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a.Logger.Info().
		Str("logLevel", a.Logger.GetLevel().String()).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

func (a *Application) build(ctx context.Context) error {
	cfg := a.Cfg

	sttBackend, err := a.newSTTBackend(ctx)
	if err != nil {
		return err
	}
	a.Transcriber = stt.NewClient(sttBackend, stt.Config{
		Language:   cfg.Conversation.Language,
		MinSilence: cfg.STT.MinSilence,
		TempDir:    cfg.STT.TempDir,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})

	a.LLM, err = a.newLLMBackend(ctx)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.LLM)

	samples, err := voice.NewSelector(voice.Config{
		Extensions: cfg.Voice.Extensions,
		Logger:     a.Logger,
	}).Select(cfg.Voice.SamplesDir)
	if err != nil && !errors.Is(err, voice.ErrMissingVoiceSamples) {
		return err
	}

	var ttsBackend tts.Backend
	switch cfg.TTS.Provider {
	case config.ProviderMock:
		ttsBackend = ttsmock.New()
	default:
		ttsBackend = xtts.New(xtts.Config{
			BaseURL: cfg.TTS.BaseURL,
			Model:   cfg.TTS.Model,
			Device:  cfg.TTS.Device,
			Timeout: cfg.TTS.Timeout,
		})
	}
	a.Synthesizer = tts.NewSynthesizer(ttsBackend, samples, tts.Config{
		Language: cfg.Conversation.Language,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	})

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
	})
	a.closers = append(a.closers, a.Publisher)

	a.Sessions = conversation.NewManager(a.Transcriber, a.LLM, a.Synthesizer, conversation.ManagerConfig{
		Persona:       cfg.LLM.Persona,
		ContextWindow: cfg.LLM.ContextWindow,
		Language:      cfg.Conversation.Language,
		IdleTimeout:   cfg.Conversation.IdleTimeout,
		Logger:        a.Logger,
		Metrics:       a.Metrics,
		Events:        a.Publisher,
	})
	return nil
}

func (a *Application) newSTTBackend(ctx context.Context) (stt.Backend, error) {
	cfg := a.Cfg.STT
	switch cfg.Provider {
	case config.ProviderMock:
		return sttmock.New(), nil
	case config.ProviderGoogle:
		g, err := google.New(ctx, google.Config{
			LanguageCode:      cfg.LanguageCode,
			SampleRateHz:      cfg.SampleRateHz,
			AudioEncoding:     cfg.AudioEncoding,
			Model:             cfg.GoogleModel,
			EnablePunctuation: true,
		})
		if err != nil {
			return nil, fmt.Errorf("stt backend: %w", err)
		}
		a.closers = append(a.closers, g)
		return g, nil
	default:
		return whisper.New(whisper.Config{
			BaseURL: cfg.WhisperURL,
			Model:   cfg.WhisperModel,
			APIKey:  cfg.WhisperAPIKey,
			Timeout: cfg.RequestTimeout,
		}), nil
	}
}

func (a *Application) newLLMBackend(ctx context.Context) (llm.Backend, error) {
	cfg := a.Cfg.LLM
	var (
		b   llm.Backend
		err error
	)
	switch cfg.Provider {
	case config.ProviderMock:
		return llmmock.New(), nil
	case config.ProviderOpenAI:
		b, err = openai.New(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32Ptr(cfg.Temperature),
		})
	default:
		b, err = gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: float32Ptr(cfg.Temperature),
			MaxTokens:   int32(cfg.MaxTokens),
		})
	}
	if errors.Is(err, llm.ErrNoAPIKey) {
		return nil, &config.ConfigurationError{Field: "llm.apiKey", Reason: err.Error()}
	}
	if err != nil {
		return nil, fmt.Errorf("llm backend: %w", err)
	}
	return b, nil
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

// Start performs any startup work required before serving traffic and
// runs session expiry until ctx is done.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	go a.Sessions.Run(ctx, a.Cfg.Conversation.ExpiryInterval)
	a.ready.Store(true)

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Dur("idleTimeout", a.Cfg.Conversation.IdleTimeout).
		Msg("Virtual secretary starting")

	return nil
}

// Ready reports whether the application is serving turns.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	shutdownLogger.Info().Int("openSessions", a.Sessions.Len()).Msg("Virtual secretary shutting down")
	a.closeAll()
}

func (a *Application) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}
