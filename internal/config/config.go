package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogLevel      string
	// Data layout
	DataDir      string
	FlightsFile  string
	OverridesDir string
	LogsDir      string
	PublicDir    string
	PromptsFile  string
	WatchData    bool
	// Optional postgres fleet store; files are used when empty
	DatabaseURL   string
	MigrationsDir string
	// Regexp for entity-id-shaped tokens in chat messages; empty uses the default
	EntityIDPattern string

	Azure AzureConfig
	Neuro NeuroConfig
}

// AzureConfig is the generic-LLM (Azure OpenAI chat completions) backend.
type AzureConfig struct {
	Endpoint   string
	Key        string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// Configured reports whether every value needed for a call is present.
func (a AzureConfig) Configured() bool {
	return a.Endpoint != "" && a.Key != "" && a.Deployment != ""
}

// NeuroConfig is the Neuro-SAN agent backend.
type NeuroConfig struct {
	APIURL             string
	ProjectName        string
	SummaryProjectName string
	Timeout            time.Duration
	RetryTimeout       time.Duration
	// Optional auth: a static bearer token, or OAuth2 client credentials
	APIToken     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Configured reports whether the base URL and canonical project are set.
func (n NeuroConfig) Configured() bool {
	return n.APIURL != "" && n.ProjectName != ""
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	dataDir := getEnvDefault("DATA_DIR", "data")
	cfg := Config{
		Port:            getEnvDefault("PORT", "3000"),
		AllowedOrigin:   getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:        getEnvDefault("LOG_LEVEL", "info"),
		DataDir:         dataDir,
		FlightsFile:     getEnvDefault("FLIGHTS_FILE", filepath.Join(dataDir, "flights.json")),
		OverridesDir:    getEnvDefault("OVERRIDES_DIR", filepath.Join(dataDir, "flights")),
		LogsDir:         getEnvDefault("LOGS_DIR", filepath.Join(dataDir, "logs")),
		PublicDir:       getEnvDefault("PUBLIC_DIR", "public"),
		PromptsFile:     getEnvDefault("PROMPTS_FILE", filepath.Join("prompts", "prompts.yaml")),
		WatchData:       getEnvBoolDefault("WATCH_DATA", true),
		DatabaseURL:     os.Getenv("DB_URL"),
		MigrationsDir:   getEnvDefault("MIGRATIONS_DIR", "migrations"),
		EntityIDPattern: os.Getenv("ENTITY_ID_PATTERN"),
		Azure: AzureConfig{
			Endpoint:   strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")),
			Key:        strings.TrimSpace(os.Getenv("AZURE_OPENAI_KEY")),
			Deployment: strings.TrimSpace(os.Getenv("AZURE_OPENAI_DEPLOYMENT")),
			APIVersion: getEnvDefault("AZURE_OPENAI_API_VERSION", "2023-05-15"),
			Timeout:    getEnvDurationDefault("AZURE_OPENAI_TIMEOUT", 60*time.Second),
		},
		Neuro: NeuroConfig{
			APIURL:             strings.TrimSpace(os.Getenv("NEURO_SAN_API_URL")),
			ProjectName:        strings.TrimSpace(os.Getenv("NEURO_SAN_PROJECT_NAME")),
			SummaryProjectName: strings.TrimSpace(os.Getenv("NEURO_SAN_SUMMARY_PROJECT_NAME")),
			Timeout:            getEnvDurationDefault("NEURO_SAN_TIMEOUT", 120*time.Second),
			RetryTimeout:       getEnvDurationDefault("NEURO_SAN_RETRY_TIMEOUT", 20*time.Second),
			APIToken:           os.Getenv("NEURO_SAN_API_TOKEN"),
			TokenURL:           os.Getenv("NEURO_SAN_TOKEN_URL"),
			ClientID:           os.Getenv("NEURO_SAN_CLIENT_ID"),
			ClientSecret:       os.Getenv("NEURO_SAN_CLIENT_SECRET"),
			Scopes:             getEnvListDefault("NEURO_SAN_SCOPES", nil),
		},
	}
	return cfg
}

// Warnings lists configuration gaps worth logging at startup. It never
// includes secret values.
func (c Config) Warnings() []string {
	var out []string
	if !c.Azure.Configured() {
		out = append(out, "AZURE_OPENAI_ENDPOINT/KEY/DEPLOYMENT not fully set; /api/ai-chat will fail until provided")
	}
	if !c.Neuro.Configured() {
		out = append(out, "NEURO_SAN_API_URL/PROJECT_NAME not set; /api/neurosan-chat will fail until provided")
	}
	return out
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("90s") or bare milliseconds.
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
