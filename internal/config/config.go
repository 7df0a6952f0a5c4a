package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookup resolves dotted configuration keys such as "programs.vivado.path".
type Lookup interface {
	Get(key string) (string, bool)
}

// Program is a locally installed executable the AI may run.
type Program struct {
	Path string `json:"path" yaml:"path"`
}

// Backend holds the settings of one AI backend.
type Backend struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	StreamAddr  string `json:"stream_addr" yaml:"stream_addr"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Agent
	Provider           string             `json:"provider" yaml:"provider"`
	MaxIterations      int                `json:"max_iterations" yaml:"max_iterations"`
	MaxPromptLength    int                `json:"max_prompt_length" yaml:"max_prompt_length"`
	AgentTimeout       int                `json:"agent_timeout" yaml:"agent_timeout"` // seconds per chat request
	DefaultProjectPath string             `json:"default_project_path" yaml:"default_project_path"`
	TempDir            string             `json:"temp_dir" yaml:"temp_dir"`
	Programs           map[string]Program `json:"programs" yaml:"programs"`
	AI                 map[string]Backend `json:"ai" yaml:"ai"` // backend name -> settings

	// Security
	EnableAuditLogging bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`
	SensitiveKeys      []string `json:"sensitive_keys" yaml:"sensitive_keys"`

	// Transcript store (Postgres); empty keeps transcripts in memory
	DatabaseURL string `json:"database_url" yaml:"database_url"`

	// Elasticsearch audit sink
	ElasticsearchEnabled     bool   `json:"elasticsearch_enabled" yaml:"elasticsearch_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host" yaml:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port" yaml:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme" yaml:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user" yaml:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password" yaml:"elasticsearch_password"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries" yaml:"elasticsearch_max_retries"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs" yaml:"elasticsearch_verify_certs"`
	ElasticsearchAuditIndex  string `json:"elasticsearch_audit_index" yaml:"elasticsearch_audit_index"`

	// BigQuery audit sink
	GCPProjectID                 string `json:"gcp_project_id" yaml:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials" yaml:"google_application_credentials"`
	BigQueryDataset              string `json:"bigquery_dataset" yaml:"bigquery_dataset"`
	BigQueryTable                string `json:"bigquery_table" yaml:"bigquery_table"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		StreamAddr:               DefaultStreamAddr,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               false,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		CORSOrigins:              []string{"http://localhost:3000"},
		Provider:                 DefaultProvider,
		MaxIterations:            DefaultMaxIterations,
		MaxPromptLength:          DefaultMaxPromptLength,
		AgentTimeout:             DefaultAgentTimeout,
		DefaultProjectPath:       DefaultProjectPath,
		TempDir:                  DefaultTempDir,
		Programs:                 make(map[string]Program),
		AI:                       make(map[string]Backend),
		EnableAuditLogging:       true,
		SensitiveKeys:            DefaultSensitiveKeys,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchVerifyCerts: true,
		ElasticsearchAuditIndex:  DefaultElasticsearchAuditIndex,
		BigQueryDataset:          DefaultBigQueryDataset,
		BigQueryTable:            DefaultBigQueryTable,
	}

	// Load from JSON or YAML config file if specified
	if path := getEnv("ARIXA_CONFIG", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("ARIXA_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("ARIXA_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("ARIXA_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("ARIXA_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("ARIXA_STREAM_ADDR", ""); v != "" {
		cfg.StreamAddr = v
	}
	if v := getEnv("ARIXA_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
		cfg.EnableAuth = true
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ARIXA_CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := getEnv("ARIXA_PROVIDER", ""); v != "" {
		cfg.Provider = v
	}
	if v := getEnv("ARIXA_MAX_ITERATIONS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
		}
	}
	if v := getEnv("ARIXA_PROJECT_PATH", ""); v != "" {
		cfg.DefaultProjectPath = v
	}
	if v := getEnv("ARIXA_TEMP_DIR", ""); v != "" {
		cfg.TempDir = v
	}
	if v := getEnv("VIVADO_PATH", ""); v != "" {
		if cfg.Programs == nil {
			cfg.Programs = make(map[string]Program)
		}
		cfg.Programs["vivado"] = Program{Path: v}
	}

	setBackend(cfg, "claude", getEnv("ANTHROPIC_API_KEY", ""), getEnv("ANTHROPIC_BASE_URL", ""))
	setBackend(cfg, "chatgpt", getEnv("OPENAI_API_KEY", ""), getEnv("OPENAI_BASE_URL", ""))
	geminiKey := getEnv("GEMINI_API_KEY", "")
	if geminiKey == "" {
		geminiKey = getEnv("GOOGLE_API_KEY", "")
	}
	setBackend(cfg, "gemini", geminiKey, "")
	setBackend(cfg, "local", "", getEnv("OLLAMA_HOST", ""))

	if v := getEnv("ARIXA_DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("ENABLE_AUDIT_LOGGING", ""); v != "" {
		cfg.EnableAuditLogging = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("ELASTICSEARCH_VERIFY_CERTS", ""); v != "" {
		cfg.ElasticsearchVerifyCerts = v == "true" || v == "1"
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
}

func setBackend(cfg *Config, name, apiKey, baseURL string) {
	if apiKey == "" && baseURL == "" {
		return
	}
	if cfg.AI == nil {
		cfg.AI = make(map[string]Backend)
	}
	b := cfg.AI[name]
	if apiKey != "" {
		b.APIKey = apiKey
	}
	if baseURL != "" {
		b.BaseURL = baseURL
	}
	cfg.AI[name] = b
}

// Get implements Lookup. Supported keys: provider, log_level,
// default_project_path, temp_dir, max_iterations, programs.<name>.path and
// ai.<backend>.{api_key,model,base_url}.
func (c *Config) Get(key string) (string, bool) {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 1:
		switch key {
		case "provider":
			return c.Provider, c.Provider != ""
		case "log_level":
			return c.LogLevel, c.LogLevel != ""
		case "default_project_path":
			return c.DefaultProjectPath, c.DefaultProjectPath != ""
		case "temp_dir":
			return c.TempDir, c.TempDir != ""
		case "max_iterations":
			return strconv.Itoa(c.MaxIterations), c.MaxIterations > 0
		}
	case len(parts) == 3 && parts[0] == "programs" && parts[2] == "path":
		p, ok := c.Programs[parts[1]]
		return p.Path, ok && p.Path != ""
	case len(parts) == 3 && parts[0] == "ai":
		b, ok := c.AI[parts[1]]
		if !ok {
			return "", false
		}
		var v string
		switch parts[2] {
		case "api_key":
			v = b.APIKey
		case "model":
			v = b.Model
		case "base_url":
			v = b.BaseURL
		}
		return v, v != ""
	}
	return "", false
}

// ProgramPaths returns program name -> executable path.
func (c *Config) ProgramPaths() map[string]string {
	out := make(map[string]string, len(c.Programs))
	for name, p := range c.Programs {
		if p.Path != "" {
			out[name] = p.Path
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
