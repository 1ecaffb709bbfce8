package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TTYV_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.openrouter_api_key", typ: kString, env: "TTYV_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenRouterAPIKey },
	},
	{
		key: "llm.model", typ: kString, env: "TTYV_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout_seconds", typ: kInt, env: "TTYV_LLM_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.LLM.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.TimeoutSeconds },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TTYV_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "summary.summary_budget", typ: kInt, env: "TTYV_SUMMARY_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Summary.SummaryBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.SummaryBudget },
	},
	{
		key: "summary.key_points_budget", typ: kInt, env: "TTYV_SUMMARY_KEY_POINTS_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Summary.KeyPointsBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.KeyPointsBudget },
	},
	{
		key: "summary.tags_budget", typ: kInt, env: "TTYV_SUMMARY_TAGS_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Summary.TagsBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.TagsBudget },
	},
	{
		key: "summary.max_key_points", typ: kInt, env: "TTYV_SUMMARY_MAX_KEY_POINTS",
		apply:   func(cfg *Config, v any) { cfg.Summary.MaxKeyPoints = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.MaxKeyPoints },
	},
	{
		key: "summary.max_tags", typ: kInt, env: "TTYV_SUMMARY_MAX_TAGS",
		apply:   func(cfg *Config, v any) { cfg.Summary.MaxTags = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.MaxTags },
	},
	{
		key: "chat.window", typ: kInt, env: "TTYV_CHAT_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Chat.Window = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.Window },
	},
	{
		key: "chat.excerpt_budget", typ: kInt, env: "TTYV_CHAT_EXCERPT_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Chat.ExcerptBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.ExcerptBudget },
	},
	{
		key: "log.level", typ: kString, env: "TTYV_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
