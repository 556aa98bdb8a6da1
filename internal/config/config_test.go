package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "SERVICE_NAME", "SERVICE_PRINCIPAL", "ENV",
		"HTTP_PORT", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_MAX_BODY_BYTES", "GRPC_PORT",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_PORT",
		"STT_PROVIDER", "STT_MIN_SILENCE", "STT_TEMP_DIR", "WHISPER_URL", "WHISPER_MODEL", "WHISPER_API_KEY",
		"STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_AUDIO_ENCODING", "STT_GOOGLE_MODEL", "STT_REQUEST_TIMEOUT",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_PERSONA", "LLM_PERSONA_FILE", "LLM_CONTEXT_WINDOW",
		"LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"TTS_PROVIDER", "TTS_URL", "TTS_MODEL", "TTS_DEVICE", "TTS_TIMEOUT",
		"VOICE_SAMPLES_DIR", "VOICE_SAMPLE_EXTENSIONS", "LANGUAGE", "SESSION_IDLE_TIMEOUT", "SESSION_EXPIRY_INTERVAL",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_COMPLETED", "KAFKA_TOPIC_FAILED", "KAFKA_PRINCIPAL",
	} {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Service defaults
	if cfg.Service.Principal != "svc-virtual-secretary" {
		t.Errorf("expected default principal 'svc-virtual-secretary', got %s", cfg.Service.Principal)
	}
	if cfg.GRPC.Port != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.GRPC.Port)
	}

	// Pipeline defaults
	if cfg.STT.Provider != ProviderWhisper || cfg.STT.WhisperModel != "medium" {
		t.Errorf("expected whisper/medium, got %s/%s", cfg.STT.Provider, cfg.STT.WhisperModel)
	}
	if cfg.STT.MinSilence != 500*time.Millisecond {
		t.Errorf("expected min silence 500ms, got %v", cfg.STT.MinSilence)
	}
	if cfg.LLM.Provider != ProviderGemini || cfg.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("expected gemini/gemini-2.5-pro, got %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.TTS.Model != "tts_models/multilingual/multi-dataset/xtts_v2" {
		t.Errorf("unexpected TTS model %s", cfg.TTS.Model)
	}
	if cfg.TTS.Device != "auto" {
		t.Errorf("expected device auto, got %s", cfg.TTS.Device)
	}
	if cfg.Voice.SamplesDir != "./voices/lidia" {
		t.Errorf("unexpected samples dir %s", cfg.Voice.SamplesDir)
	}
	if cfg.LLM.ContextWindow != 0 {
		t.Errorf("expected unlimited context window, got %d", cfg.LLM.ContextWindow)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STT_PROVIDER", "Google")
	t.Setenv("STT_MIN_SILENCE", "750ms")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_CONTEXT_WINDOW", "20")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("TTS_DEVICE", "CUDA")
	t.Setenv("VOICE_SAMPLE_EXTENSIONS", ".wav, .flac")
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.GRPC.Port != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.GRPC.Port)
	}
	if cfg.STT.Provider != ProviderGoogle {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.MinSilence != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.STT.MinSilence)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.ContextWindow != 20 || cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.3 {
		t.Errorf("unexpected LLM config %+v", cfg.LLM)
	}
	if cfg.TTS.Device != "cuda" {
		t.Errorf("expected device cuda, got %s", cfg.TTS.Device)
	}
	if len(cfg.Voice.Extensions) != 2 || cfg.Voice.Extensions[1] != ".flac" {
		t.Errorf("unexpected extensions %v", cfg.Voice.Extensions)
	}
	if cfg.Conversation.IdleTimeout != 10*time.Minute {
		t.Errorf("expected 10m idle timeout, got %v", cfg.Conversation.IdleTimeout)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("STT_MIN_SILENCE", "invalid")
	t.Setenv("KAFKA_ENABLED", "invalid")
	t.Setenv("LLM_TEMPERATURE", "warm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should fall back to defaults on parse errors
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.MinSilence != 500*time.Millisecond {
		t.Errorf("expected default min silence on invalid input, got %v", cfg.STT.MinSilence)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled on invalid input")
	}
	if cfg.LLM.Temperature != nil {
		t.Errorf("expected unset temperature on invalid input, got %v", *cfg.LLM.Temperature)
	}
}

func TestLoad_ZeroTemperatureIsKept(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_TEMPERATURE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0 {
		t.Errorf("expected an explicit temperature of 0, got %v", cfg.LLM.Temperature)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
llm:
  provider: openai
  model: gpt-4o
  contextWindow: 8
tts:
  provider: mock
conversation:
  language: it
  idleTimeout: 5m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.ContextWindow != 8 {
		t.Errorf("expected YAML values, got %+v", cfg.LLM)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected env to override YAML model, got %s", cfg.LLM.Model)
	}
	if cfg.Conversation.Language != "it" || cfg.Conversation.IdleTimeout != 5*time.Minute {
		t.Errorf("unexpected conversation config %+v", cfg.Conversation)
	}
	if cfg.STT.WhisperModel != "medium" {
		t.Errorf("expected defaults for keys missing from YAML, got %s", cfg.STT.WhisperModel)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("llm: [unclosed"), 0o644)
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestLoad_PersonaFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "persona.txt")
	_ = os.WriteFile(path, []byte("  You are Marta.\n"), 0o644)
	t.Setenv("LLM_PERSONA_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Persona != "You are Marta." {
		t.Errorf("expected persona from file, got %q", cfg.LLM.Persona)
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		want     string
	}{
		{"generic key wins", "gemini", map[string]string{"LLM_API_KEY": "generic", "GEMINI_API_KEY": "g"}, "generic"},
		{"gemini key", "gemini", map[string]string{"GEMINI_API_KEY": "g"}, "g"},
		{"openai key", "openai", map[string]string{"OPENAI_API_KEY": "o", "GEMINI_API_KEY": "g"}, "o"},
		{"mock has none", "mock", map[string]string{"GEMINI_API_KEY": "g"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LLM_PROVIDER", tt.provider)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.LLM.APIKey != tt.want {
				t.Errorf("expected key %q, got %q", tt.want, cfg.LLM.APIKey)
			}
		})
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
		field  string
	}{
		{"valid", func(c *Configuration) { c.LLM.APIKey = "k" }, ""},
		{"missing api key", func(c *Configuration) {}, "llm.apiKey"},
		{"mock llm needs no key", func(c *Configuration) { c.LLM.Provider = ProviderMock }, ""},
		{"unknown stt", func(c *Configuration) { c.LLM.APIKey = "k"; c.STT.Provider = "azure" }, "stt.provider"},
		{"unknown llm", func(c *Configuration) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"unknown tts", func(c *Configuration) { c.LLM.APIKey = "k"; c.TTS.Provider = "bark" }, "tts.provider"},
		{"missing whisper url", func(c *Configuration) { c.LLM.APIKey = "k"; c.STT.WhisperURL = "" }, "stt.whisperUrl"},
		{"zero silence", func(c *Configuration) { c.LLM.APIKey = "k"; c.STT.MinSilence = 0 }, "stt.minSilence"},
		{"bad device", func(c *Configuration) { c.LLM.APIKey = "k"; c.TTS.Device = "tpu" }, "tts.device"},
		{"kafka without brokers", func(c *Configuration) { c.LLM.APIKey = "k"; c.Kafka.Enabled = true }, "kafka.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cerr.Field)
			}
		})
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			t.Setenv(key, tt.envValue)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	def := []string{"a"}
	tests := []struct {
		value string
		want  int
	}{
		{"", 1},
		{" , ,", 1},
		{"x,y , z", 3},
	}
	for _, tt := range tests {
		t.Setenv("TEST_LIST_VAR", tt.value)
		if got := envOrDefaultList("TEST_LIST_VAR", def); len(got) != tt.want {
			t.Errorf("envOrDefaultList(%q) = %v, want %d items", tt.value, got, tt.want)
		}
	}
}
