package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Summary SummaryConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	OpenRouterAPIKey string
	Model            string
	TimeoutSeconds   int
}

type StorageConfig struct {
	DataDir string
}

type SummaryConfig struct {
	SummaryBudget   int
	KeyPointsBudget int
	TagsBudget      int
	MaxKeyPoints    int
	MaxTags         int
}

type ChatConfig struct {
	Window        int
	ExcerptBudget int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		LLM: LLMConfig{
			Model:          "anthropic/claude-opus-4",
			TimeoutSeconds: 45,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Summary: SummaryConfig{
			SummaryBudget:   8000,
			KeyPointsBudget: 6000,
			TagsBudget:      4000,
			MaxKeyPoints:    8,
			MaxTags:         10,
		},
		Chat: ChatConfig{
			Window:        10,
			ExcerptBudget: 6000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.ttyv.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/ttyv/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (TTYV_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for API key if still empty.
	if cfg.LLM.OpenRouterAPIKey == "" {
		if key, err := kc.Get("ttyv", "openrouter_api_key"); err == nil && key != "" {
			cfg.LLM.OpenRouterAPIKey = key
		}
	}

	if cfg.LLM.OpenRouterAPIKey == "" {
		msg := "missing required config: OpenRouter API key. " +
			"Set it via environment variable TTYV_OPENROUTER_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
