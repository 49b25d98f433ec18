package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for interviewsim.
type Config struct {
	General     GeneralConfig             `json:"general"`
	Knowledge   KnowledgeConfig           `json:"knowledge"`
	Embedder    EmbedderConfig            `json:"embedder"`
	VectorStore VectorStoreConfig         `json:"vectorStore"`
	LLM         LLMConfig                 `json:"llm"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Interview   InterviewConfig           `json:"interview"`
	Transcripts TranscriptsConfig         `json:"transcripts"`
	Metrics     MetricsConfig             `json:"metrics"`
	Speech      SpeechConfig              `json:"speech"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
	DataDir  string `json:"dataDir"`
}

// KnowledgeConfig configures chunking, retrieval and context assembly.
type KnowledgeConfig struct {
	Dir              string   `json:"dir"`
	Catalogue        string   `json:"catalogue,omitempty"` // YAML domain catalogue; built-in defaults when empty
	ChunkSize        int      `json:"chunkSize"`           // runes per chunk
	ChunkOverlap     int      `json:"chunkOverlap"`
	BoundaryAware    bool     `json:"boundaryAware"`
	Separators       []string `json:"separators,omitempty"`
	DefaultTopK      int      `json:"defaultTopK"`
	MaxTopK          int      `json:"maxTopK"`
	MinScore         float64  `json:"minScore"`
	MaxContextLength int      `json:"maxContextLength"`
	OrderByPosition  bool     `json:"orderByPosition"`
}

type EmbedderConfig struct {
	Type           string `json:"type"` // "hashing" | "openai" | "ollama"
	Dimension      int    `json:"dimension,omitempty"`
	APIBase        string `json:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type VectorStoreConfig struct {
	Type       string `json:"type"` // "memory" | "sqlite" | "qdrant" | "pgvector"
	Path       string `json:"path,omitempty"`
	URL        string `json:"url,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	Collection string `json:"collection,omitempty"`
	DSN        string `json:"dsn,omitempty"`
}

// LLMConfig selects the provider that asks the questions.
type LLMConfig struct {
	Provider     string   `json:"provider"`
	Priority     []string `json:"priority,omitempty"` // failover order
	Failover     bool     `json:"failover"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
}

type ProviderConfig struct {
	Enabled         bool    `json:"enabled"`
	APIBase         string  `json:"apiBase,omitempty"`
	APIKey          string  `json:"apiKey,omitempty"`
	DefaultModel    string  `json:"defaultModel,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxTokens       int     `json:"maxTokens,omitempty"`
	RateLimitPerMin int     `json:"rateLimitPerMinute,omitempty"`
}

type InterviewConfig struct {
	Difficulty   string   `json:"difficulty"` // "beginner" | "intermediate" | "advanced"
	HistoryTurns int      `json:"historyTurns"`
	MaxTurns     int      `json:"maxTurns"`
	Domains      []string `json:"domains,omitempty"`
}

type TranscriptsConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// MetricsConfig configures the Prometheus text endpoint and retrieval targets.
type MetricsConfig struct {
	Enabled            bool    `json:"enabled"`
	Addr               string  `json:"addr"`
	TargetLatencyMs    int     `json:"targetLatencyMs"`
	PrecisionThreshold float64 `json:"precisionThreshold"`
}

// SpeechConfig configures Whisper-compatible transcription of spoken answers.
type SpeechConfig struct {
	Enabled bool   `json:"enabled"`
	APIBase string `json:"apiBase,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.interviewsim).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".interviewsim"
	}
	return filepath.Join(home, ".interviewsim")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return parse(data, path)
}

// LoadRaw reads path over the defaults without expanding environment
// variables or paths, for tools that rewrite the file.
func LoadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(ExpandPath(path)); os.IsNotExist(err) {
		data, err := json.Marshal(Defaults())
		if err != nil {
			return nil, err
		}
		return parse(data, "defaults")
	}
	return Load(path)
}

func parse(data []byte, source string) (*Config, error) {
	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", source, err)
	}

	cfg.normalize()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// normalize expands ~/ paths and blanks secrets whose placeholder had no value.
func (c *Config) normalize() {
	c.General.DataDir = ExpandPath(c.General.DataDir)
	c.General.LogFile = ExpandPath(c.General.LogFile)
	c.Knowledge.Dir = ExpandPath(c.Knowledge.Dir)
	c.Knowledge.Catalogue = ExpandPath(c.Knowledge.Catalogue)
	c.VectorStore.Path = ExpandPath(c.VectorStore.Path)
	c.Transcripts.DBPath = ExpandPath(c.Transcripts.DBPath)

	for name, pc := range c.Providers {
		pc.APIKey = unresolved(pc.APIKey)
		c.Providers[name] = pc
	}
	c.Embedder.APIKey = unresolved(c.Embedder.APIKey)
	c.VectorStore.APIKey = unresolved(c.VectorStore.APIKey)
	c.VectorStore.DSN = unresolved(c.VectorStore.DSN)
	c.Speech.APIKey = unresolved(c.Speech.APIKey)
}

func unresolved(s string) string {
	if envVarPattern.MatchString(s) {
		return ""
	}
	return s
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	k := cfg.Knowledge
	if k.ChunkSize < 1 {
		errs = append(errs, "knowledge.chunkSize must be >= 1")
	}
	if k.ChunkOverlap < 0 || k.ChunkOverlap >= k.ChunkSize {
		errs = append(errs, "knowledge.chunkOverlap must be >= 0 and < chunkSize")
	}
	if k.MaxTopK < 1 {
		errs = append(errs, "knowledge.maxTopK must be >= 1")
	}
	if k.DefaultTopK < 1 || k.DefaultTopK > k.MaxTopK {
		errs = append(errs, "knowledge.defaultTopK must be between 1 and maxTopK")
	}
	if k.MinScore < -1 || k.MinScore > 1 {
		errs = append(errs, "knowledge.minScore must be between -1 and 1")
	}
	if k.MaxContextLength < 1 {
		errs = append(errs, "knowledge.maxContextLength must be >= 1")
	}

	switch cfg.Embedder.Type {
	case "", "hashing", "openai", "ollama":
	default:
		errs = append(errs, "embedder.type must be one of: hashing, openai, ollama")
	}
	if cfg.Embedder.Dimension < 0 {
		errs = append(errs, "embedder.dimension must be >= 0")
	}

	switch cfg.VectorStore.Type {
	case "memory":
	case "", "sqlite":
		if cfg.VectorStore.Path == "" {
			errs = append(errs, "vectorStore.path is required for sqlite")
		}
	case "qdrant":
		if cfg.VectorStore.URL == "" {
			errs = append(errs, "vectorStore.url is required for qdrant")
		}
	case "pgvector":
		if cfg.VectorStore.DSN == "" {
			errs = append(errs, "vectorStore.dsn is required for pgvector")
		}
	default:
		errs = append(errs, "vectorStore.type must be one of: memory, sqlite, qdrant, pgvector")
	}

	if cfg.LLM.Provider == "" {
		errs = append(errs, "llm.provider is required")
	} else if _, ok := cfg.Providers[cfg.LLM.Provider]; !ok {
		errs = append(errs, fmt.Sprintf("llm.provider references unknown provider: %s", cfg.LLM.Provider))
	}
	// Validate failover chain references exist in providers.
	for _, provName := range cfg.LLM.Priority {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("llm.priority references unknown provider: %s", provName))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.Temperature < 0 || pc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("providers.%s: temperature must be between 0 and 2", name))
		}
		if pc.MaxTokens < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s: maxTokens must be >= 0", name))
		}
		if pc.RateLimitPerMin < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s: rateLimitPerMinute must be >= 0", name))
		}
	}

	switch cfg.Interview.Difficulty {
	case "beginner", "intermediate", "advanced":
	default:
		errs = append(errs, "interview.difficulty must be one of: beginner, intermediate, advanced")
	}
	if cfg.Interview.HistoryTurns < 0 {
		errs = append(errs, "interview.historyTurns must be >= 0")
	}
	if cfg.Interview.MaxTurns < 2 {
		errs = append(errs, "interview.maxTurns must be >= 2")
	}

	if cfg.Transcripts.Enabled && cfg.Transcripts.DBPath == "" {
		errs = append(errs, "transcripts.dbPath is required when transcripts are enabled")
	}
	if cfg.Metrics.PrecisionThreshold < 0 || cfg.Metrics.PrecisionThreshold > 1 {
		errs = append(errs, "metrics.precisionThreshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
