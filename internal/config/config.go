package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Chat modes
const (
	ChatModeTextAndAudio = "text_and_audio"
	ChatModeTextOnly     = "text_only"
)

// History backends
const (
	HistoryBackendFile  = "file"
	HistoryBackendMongo = "mongo"
	HistoryBackendRedis = "redis"
)

const (
	defaultAddr            = ":8000"
	defaultCacheDir        = "cache"
	defaultCacheMaxAge     = time.Hour
	defaultSweepInterval   = 10 * time.Minute
	defaultASRTimeout      = 60 * time.Second
	defaultLLMTimeout      = 120 * time.Second
	defaultTTSTimeout      = 120 * time.Second
	defaultHistoryFile     = "chat_history/chat.json"
	defaultConversationID  = "default"
	defaultRedisAddr       = "localhost:6379"
	defaultRedisKeyPrefix  = "emotivoice:"
	defaultMongoURI        = "mongodb://localhost:27017"
	defaultMongoDatabase   = "emotivoice"
	defaultMongoCollection = "chat_history"
)

// envRef matches ${NAME} placeholders; a bare $ is left alone
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${NAME} placeholders from the environment
func expandEnv(doc string) string {
	return envRef.ReplaceAllStringFunc(doc, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// Config is the whole service configuration, built once at startup
type Config struct {
	Server    Server               `yaml:"server"`
	System    System               `yaml:"system"`
	Character Character            `yaml:"character"`
	ASR       map[string]yaml.Node `yaml:"asr"`
	LLM       map[string]yaml.Node `yaml:"llm"`
	TTS       map[string]yaml.Node `yaml:"tts"`
	Timeouts  Timeouts             `yaml:"timeouts"`
	History   History              `yaml:"history"`
	Cache     Cache                `yaml:"cache"`
	Auth      Auth                 `yaml:"auth"`
	Metrics   Metrics              `yaml:"metrics"`
}

// Server holds HTTP listener settings
type Server struct {
	Addr        string   `yaml:"addr"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// System selects the active backends and shapes the conversation
type System struct {
	ChatMode     string       `yaml:"chat_mode"`
	DefaultModel DefaultModel `yaml:"default_model"`
	SystemPrompt string       `yaml:"system_prompt"`
	// HistoryContext is how many stored transcript lines are replayed to the model
	HistoryContext int      `yaml:"history_context"`
	Fallback       Fallback `yaml:"fallback"`
}

// DefaultModel names the backend used for each category
type DefaultModel struct {
	ASR string `yaml:"asr"`
	LLM string `yaml:"llm"`
	TTS string `yaml:"tts"`
}

// Fallback holds the apology replies used when the model output is unusable
type Fallback struct {
	Text  string `yaml:"text"`
	Audio string `yaml:"audio"`
}

// Character describes the persona and its motion table
type Character struct {
	Prompt string  `yaml:"prompt"`
	Motion Motions `yaml:"motion"`
}

// Timeouts bounds each pipeline stage
type Timeouts struct {
	ASR time.Duration `yaml:"asr"`
	LLM time.Duration `yaml:"llm"`
	TTS time.Duration `yaml:"tts"`
}

// History selects and configures the transcript store
type History struct {
	Backend        string `yaml:"backend"`
	ConversationID string `yaml:"conversation_id"`
	File           struct {
		Path string `yaml:"path"`
	} `yaml:"file"`
	Mongo struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongo"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
}

// Cache configures the synthesized audio directory
type Cache struct {
	Dir           string        `yaml:"dir"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Auth enables bearer token checks when JWTSecret is set
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Metrics toggles the prometheus endpoint
type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads .env (when present) and then the YAML document at path.
// ${VAR} references in the document are expanded from the environment.
func Load(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.System.ChatMode == "" {
		c.System.ChatMode = ChatModeTextAndAudio
	}
	if c.Timeouts.ASR == 0 {
		c.Timeouts.ASR = defaultASRTimeout
	}
	if c.Timeouts.LLM == 0 {
		c.Timeouts.LLM = defaultLLMTimeout
	}
	if c.Timeouts.TTS == 0 {
		c.Timeouts.TTS = defaultTTSTimeout
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = defaultCacheDir
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = defaultCacheMaxAge
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = defaultSweepInterval
	}

	h := &c.History
	if h.Backend == "" {
		h.Backend = HistoryBackendFile
	}
	if h.ConversationID == "" {
		h.ConversationID = defaultConversationID
	}
	if h.File.Path == "" {
		h.File.Path = defaultHistoryFile
	}
	if h.Mongo.URI == "" {
		h.Mongo.URI = defaultMongoURI
	}
	if h.Mongo.Database == "" {
		h.Mongo.Database = defaultMongoDatabase
	}
	if h.Mongo.Collection == "" {
		h.Mongo.Collection = defaultMongoCollection
	}
	if h.Redis.Addr == "" {
		h.Redis.Addr = defaultRedisAddr
	}
	if h.Redis.KeyPrefix == "" {
		h.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

// Validate checks values that do not depend on a specific adapter
func (c *Config) Validate() error {
	switch c.System.ChatMode {
	case ChatModeTextAndAudio, ChatModeTextOnly:
	default:
		return fmt.Errorf("invalid chat_mode %q (supported: %s, %s)", c.System.ChatMode, ChatModeTextAndAudio, ChatModeTextOnly)
	}

	if c.System.DefaultModel.LLM == "" {
		return errors.New("system.default_model.llm is required")
	}
	if c.System.DefaultModel.TTS == "" {
		return errors.New("system.default_model.tts is required")
	}
	if c.System.ChatMode != ChatModeTextOnly && c.System.DefaultModel.ASR == "" {
		return errors.New("system.default_model.asr is required unless chat_mode is text_only")
	}
	if c.System.HistoryContext < 0 {
		return fmt.Errorf("system.history_context must not be negative, got %d", c.System.HistoryContext)
	}

	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache.max_age must be positive, got %s", c.Cache.MaxAge)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval)
	}

	switch c.History.Backend {
	case HistoryBackendFile, HistoryBackendMongo, HistoryBackendRedis:
	default:
		return &UnknownBackendError{
			Category:  "history",
			Name:      c.History.Backend,
			Supported: []string{HistoryBackendFile, HistoryBackendMongo, HistoryBackendRedis},
		}
	}
	return nil
}

// AudioEnabled reports whether the audio route is served
func (c *Config) AudioEnabled() bool {
	return c.System.ChatMode != ChatModeTextOnly
}

// ASRNode returns the configuration section of the active ASR backend
func (c *Config) ASRNode() *yaml.Node { return section(c.ASR, c.System.DefaultModel.ASR) }

// LLMNode returns the configuration section of the active LLM backend
func (c *Config) LLMNode() *yaml.Node { return section(c.LLM, c.System.DefaultModel.LLM) }

// TTSNode returns the configuration section of the active TTS backend
func (c *Config) TTSNode() *yaml.Node { return section(c.TTS, c.System.DefaultModel.TTS) }

func section(m map[string]yaml.Node, name string) *yaml.Node {
	n, ok := m[name]
	if !ok {
		return nil
	}
	return &n
}

// Decode strictly decodes a backend section into out.
// A nil node leaves out untouched so adapters fall back to their defaults.
func Decode(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}

	// Re-encode so the strict decoder can reject unknown keys.
	raw, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode backend config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid backend config: %w", err)
	}
	return nil
}

// UnknownBackendError is returned when a category names a backend that is not registered
type UnknownBackendError struct {
	Category  string
	Name      string
	Supported []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown %s backend %q (supported: %s)", e.Category, e.Name, strings.Join(e.Supported, ", "))
}
