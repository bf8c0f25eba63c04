package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Realtime      RealtimeConfig
	Assistant     AssistantConfig
	Collaborators CollaboratorConfig
	Reference     ReferenceConfig
	Session       SessionConfig
	Triggers      TriggerConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	RealtimeLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection  string
	AutoMigrate bool
}

// RealtimeConfig points at the upstream speech-to-speech backend.
type RealtimeConfig struct {
	URL                 string
	APIKey              string
	Voice               string
	Instructions        string
	TranscriptionModel  string
	TranscriptionPrompt string
	VADThreshold        float64
	PrefixPaddingMS     int
	SilenceDurationMS   int
	SettleDelay         time.Duration
	SampleRate          int
	DialTimeout         time.Duration
}

func (c RealtimeConfig) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

type AssistantConfig struct {
	LLMProvider      string // "ollama", "anthropic" or "openai"
	LLMModel         string
	OllamaBaseURL    string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	HistoryLimit     int
	Timeout          time.Duration
}

type CollaboratorConfig struct {
	TTSURL        string
	TTSAuthToken  string
	TTSVoice      string
	VisionURL     string
	VisionAPIKey  string
	VisionModel   string
	CalendarURL   string
	MessagingURL  string
	OAuthTokenURL string
	OAuthClientID string
	OAuthSecret   string
	OAuthScopes   []string
	FetchTimeout  time.Duration
}

type ReferenceConfig struct {
	Source          string // "http", "postgres" or "" (disabled)
	URL             string
	Limit           int
	RefreshInterval time.Duration
}

type SessionConfig struct {
	SweepInterval time.Duration
	SendBuffer    int
	ArtifactTTL   time.Duration // in-memory artifact store only
}

type TriggerConfig struct {
	PhrasesFile string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			RealtimeLogPath:    getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Realtime: RealtimeConfig{
			URL:                 getEnv("REALTIME_URL", ""),
			APIKey:              getEnv("REALTIME_API_KEY", ""),
			Voice:               getEnv("REALTIME_VOICE", "alloy"),
			Instructions:        getEnv("REALTIME_INSTRUCTIONS", defaultInstructions),
			TranscriptionModel:  getEnv("REALTIME_TRANSCRIPTION_MODEL", "whisper-1"),
			TranscriptionPrompt: getEnv("REALTIME_TRANSCRIPTION_PROMPT", "Hey PM, Hey Claude, P.M."),
			VADThreshold:        getEnvAsFloat("REALTIME_VAD_THRESHOLD", 0.5),
			PrefixPaddingMS:     getEnvAsInt("REALTIME_PREFIX_PADDING_MS", 300),
			SilenceDurationMS:   getEnvAsInt("REALTIME_SILENCE_DURATION_MS", 500),
			SettleDelay:         time.Duration(getEnvAsInt("REALTIME_SETTLE_DELAY_MS", 500)) * time.Millisecond,
			SampleRate:          getEnvAsInt("REALTIME_SAMPLE_RATE", 24000),
			DialTimeout:         time.Duration(getEnvAsInt("REALTIME_DIAL_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Assistant: AssistantConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:         getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			HistoryLimit:     getEnvAsInt("ASSISTANT_HISTORY_LIMIT", 20),
			Timeout:          time.Duration(getEnvAsInt("ASSISTANT_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Collaborators: CollaboratorConfig{
			TTSURL:        getEnv("TTS_URL", ""),
			TTSAuthToken:  getEnv("TTS_AUTH_TOKEN", ""),
			TTSVoice:      getEnv("TTS_VOICE", "alloy"),
			VisionURL:     getEnv("VISION_URL", ""),
			VisionAPIKey:  getEnv("VISION_API_KEY", ""),
			VisionModel:   getEnv("VISION_MODEL", "gpt-4o-mini"),
			CalendarURL:   getEnv("CALENDAR_URL", ""),
			MessagingURL:  getEnv("MESSAGING_URL", ""),
			OAuthTokenURL: getEnv("OAUTH_TOKEN_URL", ""),
			OAuthClientID: getEnv("OAUTH_CLIENT_ID", ""),
			OAuthSecret:   getEnv("OAUTH_CLIENT_SECRET", ""),
			OAuthScopes:   getEnvAsList("OAUTH_SCOPES"),
			FetchTimeout:  time.Duration(getEnvAsInt("COLLABORATOR_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Reference: ReferenceConfig{
			Source:          getEnv("REFERENCE_SOURCE", ""),
			URL:             getEnv("REFERENCE_URL", ""),
			Limit:           getEnvAsInt("REFERENCE_LIMIT", 50),
			RefreshInterval: time.Duration(getEnvAsInt("REFERENCE_REFRESH_SECONDS", 30)) * time.Second,
		},
		Session: SessionConfig{
			SweepInterval: time.Duration(getEnvAsInt("SESSION_SWEEP_SECONDS", 30)) * time.Second,
			SendBuffer:    getEnvAsInt("SESSION_SEND_BUFFER", 1024),
			ArtifactTTL:   time.Duration(getEnvAsInt("ARTIFACT_TTL_HOURS", 24)) * time.Hour,
		},
		Triggers: TriggerConfig{
			PhrasesFile: getEnv("TRIGGER_PHRASES_FILE", ""),
		},
	}
}

const defaultInstructions = "You are PM, a project manager sitting in on a live meeting. " +
	"Only speak when you are explicitly asked to respond. Keep answers short and conversational. " +
	"When context messages are provided, ground your answer in them and do not invent details."

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
