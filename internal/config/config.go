// Package config loads the service configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderMock    = "mock"
	ProviderGoogle  = "google"
	ProviderWhisper = "whisper"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderXTTS    = "xtts"
)

// ConfigurationError reports an invalid or missing setting. It is fatal at
// startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Configuration is the full service configuration. It is not modified
// after Load returns.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	HTTP          HTTPConfig          `yaml:"http"`
	GRPC          GRPCConfig          `yaml:"grpc"`
	Observability ObservabilityConfig `yaml:"observability"`
	STT           STTConfig           `yaml:"stt"`
	LLM           LLMConfig           `yaml:"llm"`
	TTS           TTSConfig           `yaml:"tts"`
	Voice         VoiceConfig         `yaml:"voice"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	Kafka         KafkaConfig         `yaml:"kafka"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Principal   string `yaml:"principal"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

type GRPCConfig struct {
	Port string `yaml:"port"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	MetricsPort string `yaml:"metricsPort"`
}

type STTConfig struct {
	Provider       string        `yaml:"provider"`
	MinSilence     time.Duration `yaml:"minSilence"`
	TempDir        string        `yaml:"tempDir"`
	WhisperURL     string        `yaml:"whisperUrl"`
	WhisperModel   string        `yaml:"whisperModel"`
	WhisperAPIKey  string        `yaml:"whisperApiKey"`
	LanguageCode   string        `yaml:"languageCode"` // Google BCP-47 default
	SampleRateHz   int           `yaml:"sampleRateHz"`
	AudioEncoding  string        `yaml:"audioEncoding"`
	GoogleModel    string        `yaml:"googleModel"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type LLMConfig struct {
	Provider      string   `yaml:"provider"`
	Model         string   `yaml:"model"`
	APIKey        string   `yaml:"apiKey"`
	BaseURL       string   `yaml:"baseUrl"`
	Persona       string   `yaml:"persona"`
	PersonaFile   string   `yaml:"personaFile"`
	ContextWindow int      `yaml:"contextWindow"`
	Temperature   *float64 `yaml:"temperature"` // nil keeps the provider default
	MaxTokens     int      `yaml:"maxTokens"`
}

type TTSConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"baseUrl"`
	Model    string        `yaml:"model"`
	Device   string        `yaml:"device"`
	Timeout  time.Duration `yaml:"timeout"`
}

type VoiceConfig struct {
	SamplesDir string   `yaml:"samplesDir"`
	Extensions []string `yaml:"extensions"`
}

type ConversationConfig struct {
	Language       string        `yaml:"language"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	ExpiryInterval time.Duration `yaml:"expiryInterval"`
}

type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicCompleted string   `yaml:"topicCompleted"`
	TopicFailed    string   `yaml:"topicFailed"`
	Principal      string   `yaml:"principal"`
}

// Defaults returns the built-in configuration.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Name:        "virtual-secretary",
			Principal:   "svc-virtual-secretary",
			Environment: "dev",
		},
		HTTP: HTTPConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxBodyBytes: 25 * 1024 * 1024,
		},
		GRPC: GRPCConfig{Port: "50051"},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: "9090",
		},
		STT: STTConfig{
			Provider:       ProviderWhisper,
			MinSilence:     500 * time.Millisecond,
			WhisperURL:     "http://localhost:8000",
			WhisperModel:   "medium",
			LanguageCode:   "en-US",
			SampleRateHz:   16000,
			AudioEncoding:  "LINEAR16",
			RequestTimeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			Model:    "gemini-2.5-pro",
		},
		TTS: TTSConfig{
			Provider: ProviderXTTS,
			BaseURL:  "http://localhost:8020",
			Model:    "tts_models/multilingual/multi-dataset/xtts_v2",
			Device:   "auto",
			Timeout:  2 * time.Minute,
		},
		Voice: VoiceConfig{
			SamplesDir: "./voices/lidia",
			Extensions: []string{".wav"},
		},
		Conversation: ConversationConfig{
			Language:       "en",
			IdleTimeout:    30 * time.Minute,
			ExpiryInterval: time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:        false,
			TopicCompleted: "conversation.turn.completed",
			TopicFailed:    "conversation.turn.failed",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables. Invalid numeric, boolean
// and duration values fall back to the previous layer.
func Load() (*Configuration, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.LLM.PersonaFile != "" {
		data, err := os.ReadFile(cfg.LLM.PersonaFile)
		if err != nil {
			return nil, &ConfigurationError{Field: "llm.personaFile", Reason: err.Error()}
		}
		cfg.LLM.Persona = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

func (c *Configuration) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Field: "CONFIG_FILE", Reason: err.Error()}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigurationError{Field: "CONFIG_FILE", Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return nil
}

func (c *Configuration) applyEnv() {
	c.Service.Name = envOrDefault("SERVICE_NAME", c.Service.Name)
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.Environment = envOrDefault("ENV", c.Service.Environment)

	c.HTTP.Port = envOrDefault("HTTP_PORT", c.HTTP.Port)
	c.HTTP.ReadTimeout = envOrDefaultDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = envOrDefaultDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.MaxBodyBytes = int64(envOrDefaultInt("HTTP_MAX_BODY_BYTES", int(c.HTTP.MaxBodyBytes)))

	c.GRPC.Port = envOrDefault("GRPC_PORT", c.GRPC.Port)

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsPort = envOrDefault("METRICS_PORT", c.Observability.MetricsPort)

	c.STT.Provider = strings.ToLower(envOrDefault("STT_PROVIDER", c.STT.Provider))
	c.STT.MinSilence = envOrDefaultDuration("STT_MIN_SILENCE", c.STT.MinSilence)
	c.STT.TempDir = envOrDefault("STT_TEMP_DIR", c.STT.TempDir)
	c.STT.WhisperURL = envOrDefault("WHISPER_URL", c.STT.WhisperURL)
	c.STT.WhisperModel = envOrDefault("WHISPER_MODEL", c.STT.WhisperModel)
	c.STT.WhisperAPIKey = envOrDefault("WHISPER_API_KEY", c.STT.WhisperAPIKey)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)
	c.STT.GoogleModel = envOrDefault("STT_GOOGLE_MODEL", c.STT.GoogleModel)
	c.STT.RequestTimeout = envOrDefaultDuration("STT_REQUEST_TIMEOUT", c.STT.RequestTimeout)

	c.LLM.Provider = strings.ToLower(envOrDefault("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = envOrDefault("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = envOrDefault("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Persona = envOrDefault("LLM_PERSONA", c.LLM.Persona)
	c.LLM.PersonaFile = envOrDefault("LLM_PERSONA_FILE", c.LLM.PersonaFile)
	c.LLM.ContextWindow = envOrDefaultInt("LLM_CONTEXT_WINDOW", c.LLM.ContextWindow)
	c.LLM.Temperature = envOrDefaultFloatPtr("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = envOrDefaultInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.APIKey = envOrDefault("LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderGemini:
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderOpenAI:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	c.TTS.Provider = strings.ToLower(envOrDefault("TTS_PROVIDER", c.TTS.Provider))
	c.TTS.BaseURL = envOrDefault("TTS_URL", c.TTS.BaseURL)
	c.TTS.Model = envOrDefault("TTS_MODEL", c.TTS.Model)
	c.TTS.Device = strings.ToLower(envOrDefault("TTS_DEVICE", c.TTS.Device))
	c.TTS.Timeout = envOrDefaultDuration("TTS_TIMEOUT", c.TTS.Timeout)

	c.Voice.SamplesDir = envOrDefault("VOICE_SAMPLES_DIR", c.Voice.SamplesDir)
	c.Voice.Extensions = envOrDefaultList("VOICE_SAMPLE_EXTENSIONS", c.Voice.Extensions)

	c.Conversation.Language = envOrDefault("LANGUAGE", c.Conversation.Language)
	c.Conversation.IdleTimeout = envOrDefaultDuration("SESSION_IDLE_TIMEOUT", c.Conversation.IdleTimeout)
	c.Conversation.ExpiryInterval = envOrDefaultDuration("SESSION_EXPIRY_INTERVAL", c.Conversation.ExpiryInterval)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TopicCompleted = envOrDefault("KAFKA_TOPIC_COMPLETED", c.Kafka.TopicCompleted)
	c.Kafka.TopicFailed = envOrDefault("KAFKA_TOPIC_FAILED", c.Kafka.TopicFailed)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}
}

// Validate checks the settings needed to build the backends.
func (c *Configuration) Validate() error {
	var errs []error

	switch c.STT.Provider {
	case ProviderMock, ProviderGoogle:
	case ProviderWhisper:
		if c.STT.WhisperURL == "" {
			errs = append(errs, &ConfigurationError{Field: "stt.whisperUrl", Reason: "required for the whisper provider"})
		}
	default:
		errs = append(errs, &ConfigurationError{Field: "stt.provider", Reason: fmt.Sprintf("unknown provider %q", c.STT.Provider)})
	}
	if c.STT.MinSilence <= 0 {
		errs = append(errs, &ConfigurationError{Field: "stt.minSilence", Reason: "must be positive"})
	}

	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderGemini, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, &ConfigurationError{Field: "llm.apiKey", Reason: "required for the " + c.LLM.Provider + " provider"})
		}
	default:
		errs = append(errs, &ConfigurationError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", c.LLM.Provider)})
	}
	if c.LLM.ContextWindow < 0 {
		errs = append(errs, &ConfigurationError{Field: "llm.contextWindow", Reason: "must not be negative"})
	}

	switch c.TTS.Provider {
	case ProviderMock:
	case ProviderXTTS:
		if c.TTS.BaseURL == "" {
			errs = append(errs, &ConfigurationError{Field: "tts.baseUrl", Reason: "required for the xtts provider"})
		}
	default:
		errs = append(errs, &ConfigurationError{Field: "tts.provider", Reason: fmt.Sprintf("unknown provider %q", c.TTS.Provider)})
	}
	switch c.TTS.Device {
	case "auto", "cpu", "cuda":
	default:
		errs = append(errs, &ConfigurationError{Field: "tts.device", Reason: fmt.Sprintf("unknown device %q", c.TTS.Device)})
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, &ConfigurationError{Field: "kafka.brokers", Reason: "required when kafka is enabled"})
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// envOrDefaultFloatPtr distinguishes an explicit 0 from an unset value.
func envOrDefaultFloatPtr(key string, def *float64) *float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
