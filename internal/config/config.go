package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
}

// PipelineConfig carries the recognition pipeline's tunables. The two
// thresholds were empirically tuned in the field rather than derived, so
// they live in configuration instead of constants.
type PipelineConfig struct {
	// CatalogPath points at a block catalog YAML document. Empty uses the
	// embedded catalog.
	CatalogPath string `json:"catalog_path,omitempty"`

	// MatchThreshold is the minimum normalized similarity (0..1) a fuzzy
	// match must reach before a detected label is accepted.
	MatchThreshold float64 `json:"match_threshold,omitempty"`

	// DedupDistancePX is the maximum distance in source-image pixels
	// between two box centers for same-identifier detections to collapse
	// into one.
	DedupDistancePX float64 `json:"dedup_distance_px,omitempty"`
}

type VisionConfig struct {
	// Provider is "gcp" or "mock".
	Provider string   `json:"provider"`
	Timeout  Duration `json:"timeout,omitempty"`
}

type JSONSchemaConfig struct {
	// Mode controls how structured JSON output is requested from the
	// engine: "none", "guided_json", "prompt", or "auto" (guided first,
	// prompt fallback).
	Mode string `json:"mode,omitempty"`

	// MaxRetries is the number of additional attempts when output is not
	// valid JSON. Total attempts = 1 + MaxRetries.
	MaxRetries int `json:"max_retries,omitempty"`

	// MaxPromptBytes caps how much schema text is injected into a prompt
	// when Mode includes "prompt".
	MaxPromptBytes int `json:"max_prompt_bytes,omitempty"`
}

type LLMConfig struct {
	// Provider is "oai_http" (any OpenAI-compatible server, e.g. a local
	// LM Studio), "gemini", or "mock".
	Provider string `json:"provider"`

	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`

	// APIKey is normally supplied via env (BB_LLM_API_KEY or
	// GEMINI_API_KEY), never via the config file.
	APIKey string `json:"-"`

	ChatCompletionsPath string   `json:"chat_completions_path,omitempty"`
	Timeout             Duration `json:"timeout,omitempty"`

	JSONSchema JSONSchemaConfig `json:"json_schema,omitempty"`
}

type TutorConfig struct {
	// CacheBackend is "memory" or "redis" (redis address from REDIS_ADDR).
	CacheBackend string   `json:"cache_backend"`
	CacheTTL     Duration `json:"cache_ttl,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver"`
	DSN    string `json:"dsn,omitempty"`
}

type UploadsConfig struct {
	// Backend is "local" or "gcs".
	Backend string `json:"backend"`
	Dir     string `json:"dir,omitempty"`
	Bucket  string `json:"bucket,omitempty"`

	// MaxAge and SweepEvery drive the background janitor that removes
	// stale uploads.
	MaxAge     Duration `json:"max_age,omitempty"`
	SweepEvery Duration `json:"sweep_every,omitempty"`
}

type SessionConfig struct {
	CookieName string   `json:"cookie_name,omitempty"`
	TTL        Duration `json:"ttl,omitempty"`

	// Secret signs session cookies; supplied via BB_SESSION_SECRET. When
	// empty a random per-process secret is generated (sessions do not
	// survive restarts).
	Secret string `json:"-"`
}

type Config struct {
	Env      string         `json:"env"`
	HTTP     HTTPConfig     `json:"http"`
	Pipeline PipelineConfig `json:"pipeline"`
	Vision   VisionConfig   `json:"vision"`
	LLM      LLMConfig      `json:"llm"`
	Tutor    TutorConfig    `json:"tutor"`
	Store    StoreConfig    `json:"store"`
	Uploads  UploadsConfig  `json:"uploads"`
	Session  SessionConfig  `json:"session"`
}
