package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxUploadBytes:    16 << 20,
		},
		Pipeline: PipelineConfig{
			MatchThreshold:  0.72,
			DedupDistancePX: 40,
		},
		Vision: VisionConfig{
			Provider: "mock",
			Timeout:  Duration{Duration: 60 * time.Second},
		},
		LLM: LLMConfig{
			Provider:            "oai_http",
			BaseURL:             "http://localhost:1234",
			Model:               "meta-llama-3.1-8b-instruct",
			ChatCompletionsPath: "/v1/chat/completions",
			Timeout:             Duration{Duration: 60 * time.Second},
			JSONSchema: JSONSchemaConfig{
				Mode:           "auto",
				MaxRetries:     2,
				MaxPromptBytes: 64 << 10,
			},
		},
		Tutor: TutorConfig{
			CacheBackend: "memory",
			CacheTTL:     Duration{Duration: 5 * time.Minute},
			MaxTokens:    200,
			Temperature:  0.3,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "blockbridge.db",
		},
		Uploads: UploadsConfig{
			Backend:    "local",
			Dir:        "uploads",
			MaxAge:     Duration{Duration: 24 * time.Hour},
			SweepEvery: Duration{Duration: time.Hour},
		},
		Session: SessionConfig{
			CookieName: "bb_session",
			TTL:        Duration{Duration: 24 * time.Hour},
		},
	}
}

// Load reads the config file named by BB_CONFIG_PATH (falling back to
// ./config/config.json when present), applies env overrides, fills
// defaults, and validates. Secrets only ever come from env.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("BB_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		var loaded Config
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
		*cfg = loaded
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_BLOCKS_PATH")); v != "" {
		cfg.Pipeline.CatalogPath = v
	}
	if v, ok := envFloat("BB_MATCH_THRESHOLD"); ok {
		cfg.Pipeline.MatchThreshold = v
	}
	if v, ok := envFloat("BB_DEDUP_DISTANCE_PX"); ok {
		cfg.Pipeline.DedupDistancePX = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_VISION_PROVIDER")); v != "" {
		cfg.Vision.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_CACHE_BACKEND")); v != "" {
		cfg.Tutor.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_DB_DRIVER")); v != "" {
		cfg.Store.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_DB_DSN")); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_UPLOADS_BACKEND")); v != "" {
		cfg.Uploads.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_UPLOADS_DIR")); v != "" {
		cfg.Uploads.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_UPLOADS_BUCKET")); v != "" {
		cfg.Uploads.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("BB_SESSION_SECRET")); v != "" {
		cfg.Session.Secret = v
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		cfg.HTTP.MaxUploadBytes = 16 << 20
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	if cfg.Pipeline.MatchThreshold == 0 {
		cfg.Pipeline.MatchThreshold = 0.72
	}
	if cfg.Pipeline.MatchThreshold <= 0 || cfg.Pipeline.MatchThreshold > 1 {
		return fmt.Errorf("pipeline.match_threshold must be in (0,1], got %v", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.DedupDistancePX == 0 {
		cfg.Pipeline.DedupDistancePX = 40
	}
	if cfg.Pipeline.DedupDistancePX < 0 {
		return fmt.Errorf("pipeline.dedup_distance_px must be >= 0, got %v", cfg.Pipeline.DedupDistancePX)
	}

	cfg.Vision.Provider = strings.ToLower(strings.TrimSpace(cfg.Vision.Provider))
	switch cfg.Vision.Provider {
	case "":
		cfg.Vision.Provider = "mock"
	case "gcp", "mock":
	default:
		return fmt.Errorf("vision.provider must be gcp or mock, got %q", cfg.Vision.Provider)
	}
	if cfg.Vision.Timeout.Duration <= 0 {
		cfg.Vision.Timeout = Duration{Duration: 60 * time.Second}
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch cfg.LLM.Provider {
	case "":
		cfg.LLM.Provider = "mock"
	case "openai_http":
		cfg.LLM.Provider = "oai_http"
	case "oai_http", "gemini", "mock":
	default:
		return fmt.Errorf("llm.provider must be oai_http, gemini, or mock, got %q", cfg.LLM.Provider)
	}
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	if cfg.LLM.Provider == "oai_http" {
		if cfg.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required for provider oai_http")
		}
		if strings.TrimSpace(cfg.LLM.ChatCompletionsPath) == "" {
			cfg.LLM.ChatCompletionsPath = "/v1/chat/completions"
		}
	}
	if cfg.LLM.Provider == "gemini" && strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = "meta-llama-3.1-8b-instruct"
	}
	if cfg.LLM.Timeout.Duration <= 0 {
		cfg.LLM.Timeout = Duration{Duration: 60 * time.Second}
	}
	cfg.LLM.JSONSchema.Mode = strings.ToLower(strings.TrimSpace(cfg.LLM.JSONSchema.Mode))
	switch cfg.LLM.JSONSchema.Mode {
	case "", "auto":
		cfg.LLM.JSONSchema.Mode = "auto"
	case "none", "guided_json", "prompt":
	default:
		return fmt.Errorf("llm.json_schema.mode invalid: %q", cfg.LLM.JSONSchema.Mode)
	}
	if cfg.LLM.JSONSchema.MaxRetries <= 0 {
		cfg.LLM.JSONSchema.MaxRetries = 2
	}
	if cfg.LLM.JSONSchema.MaxPromptBytes <= 0 {
		cfg.LLM.JSONSchema.MaxPromptBytes = 64 << 10
	}

	cfg.Tutor.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.Tutor.CacheBackend))
	switch cfg.Tutor.CacheBackend {
	case "":
		cfg.Tutor.CacheBackend = "memory"
	case "memory", "redis":
	default:
		return fmt.Errorf("tutor.cache_backend must be memory or redis, got %q", cfg.Tutor.CacheBackend)
	}
	if cfg.Tutor.CacheTTL.Duration <= 0 {
		cfg.Tutor.CacheTTL = Duration{Duration: 5 * time.Minute}
	}
	if cfg.Tutor.MaxTokens <= 0 {
		cfg.Tutor.MaxTokens = 200
	}
	if cfg.Tutor.Temperature <= 0 {
		cfg.Tutor.Temperature = 0.3
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "":
		cfg.Store.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", cfg.Store.Driver)
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" {
		if cfg.Store.Driver == "sqlite" {
			cfg.Store.DSN = "blockbridge.db"
		} else {
			return fmt.Errorf("store.dsn is required for driver %q", cfg.Store.Driver)
		}
	}

	cfg.Uploads.Backend = strings.ToLower(strings.TrimSpace(cfg.Uploads.Backend))
	switch cfg.Uploads.Backend {
	case "":
		cfg.Uploads.Backend = "local"
	case "local", "gcs":
	default:
		return fmt.Errorf("uploads.backend must be local or gcs, got %q", cfg.Uploads.Backend)
	}
	if cfg.Uploads.Backend == "local" && strings.TrimSpace(cfg.Uploads.Dir) == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if cfg.Uploads.Backend == "gcs" && strings.TrimSpace(cfg.Uploads.Bucket) == "" {
		return fmt.Errorf("uploads.bucket is required for backend gcs")
	}
	if cfg.Uploads.MaxAge.Duration <= 0 {
		cfg.Uploads.MaxAge = Duration{Duration: 24 * time.Hour}
	}
	if cfg.Uploads.SweepEvery.Duration <= 0 {
		cfg.Uploads.SweepEvery = Duration{Duration: time.Hour}
	}

	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		cfg.Session.CookieName = "bb_session"
	}
	if cfg.Session.TTL.Duration <= 0 {
		cfg.Session.TTL = Duration{Duration: 24 * time.Hour}
	}

	return nil
}

func envFloat(name string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
