package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the voice gateway.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	RateLimits    RateLimitConfig     `mapstructure:"rate_limits"`
	Providers     ProviderConfig      `mapstructure:"providers"`
	Audio         AudioConfig         `mapstructure:"audio"`
	History       HistoryConfig       `mapstructure:"history"`
	Benchmarks    BenchmarkConfig     `mapstructure:"benchmarks"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Health        HealthConfig        `mapstructure:"health"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
	Version               string        `mapstructure:"version"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MinConns        int32         `mapstructure:"min_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	Backend           string        `mapstructure:"backend"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	PipelineCost      int           `mapstructure:"pipeline_cost"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

type ProviderConfig struct {
	STT            string        `mapstructure:"stt"`
	Translate      string        `mapstructure:"translate"`
	TTS            string        `mapstructure:"tts"`
	Embeddings     string        `mapstructure:"embeddings"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LocalWorkers   int           `mapstructure:"local_workers"`

	Ollama     OllamaConfig     `mapstructure:"ollama"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Azure      AzureConfig      `mapstructure:"azure"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Vertex     VertexConfig     `mapstructure:"vertex"`
	DeepL      DeepLConfig      `mapstructure:"deepl"`
	Chatterbox ChatterboxConfig `mapstructure:"chatterbox"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Whisper    WhisperConfig    `mapstructure:"whisper"`
	Piper      PiperConfig      `mapstructure:"piper"`
}

type OllamaConfig struct {
	URL            string `mapstructure:"url"`
	Model          string `mapstructure:"model"`
	EmbeddingURL   string `mapstructure:"embedding_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Organization   string `mapstructure:"organization"`
	ChatModel      string `mapstructure:"chat_model"`
	STTModel       string `mapstructure:"stt_model"`
	TTSModel       string `mapstructure:"tts_model"`
	TTSVoice       string `mapstructure:"tts_voice"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type AzureConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	APIVersion     string `mapstructure:"api_version"`
	ChatDeployment string `mapstructure:"chat_deployment"`
	STTDeployment  string `mapstructure:"stt_deployment"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Profile         string `mapstructure:"profile"`
	BedrockModel    string `mapstructure:"bedrock_model"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Version   string `mapstructure:"version"`
	Model     string `mapstructure:"model"`
	MaxTokens int32  `mapstructure:"max_tokens"`
}

// VertexConfig points at a Gemini model on Vertex AI. CredentialsJSON is a
// service-account key, raw or base64 encoded per CredentialsFormat.
type VertexConfig struct {
	ProjectID         string `mapstructure:"project_id"`
	Location          string `mapstructure:"location"`
	Publisher         string `mapstructure:"publisher"`
	Model             string `mapstructure:"model"`
	Endpoint          string `mapstructure:"endpoint"`
	CredentialsJSON   string `mapstructure:"credentials_json"`
	CredentialsFormat string `mapstructure:"credentials_format"`
}

type DeepLConfig struct {
	APIKey string `mapstructure:"api_key"`
	Free   bool   `mapstructure:"free"`
}

type ChatterboxConfig struct {
	URL   string `mapstructure:"url"`
	Voice string `mapstructure:"voice"`
}

type ElevenLabsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	VoiceID string `mapstructure:"voice_id"`
}

type WhisperConfig struct {
	Model       string `mapstructure:"model"`
	Device      string `mapstructure:"device"`
	ComputeType string `mapstructure:"compute_type"`
	Python      string `mapstructure:"python"`
}

type PiperConfig struct {
	Binary    string `mapstructure:"binary"`
	Voice     string `mapstructure:"voice"`
	VoicesDir string `mapstructure:"voices_dir"`
}

type AudioConfig struct {
	MaxUploadMB   int              `mapstructure:"max_upload_mb"`
	Storage       string           `mapstructure:"storage"`
	EncryptionKey string           `mapstructure:"encryption_key"`
	FFmpegPath    string           `mapstructure:"ffmpeg_path"`
	S3            AudioS3Config    `mapstructure:"s3"`
	Local         AudioLocalConfig `mapstructure:"local"`
}

type AudioS3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type AudioLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	QueueSize     int           `mapstructure:"queue_size"`
	Workers       int           `mapstructure:"workers"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type BenchmarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

type AuthConfig struct {
	// APIKeys is a comma separated list; entries may be plaintext keys or argon2id hashes.
	APIKeys string          `mapstructure:"api_keys"`
	Admin   AdminAuthConfig `mapstructure:"admin"`
}

type AdminAuthConfig struct {
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("VOICE_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("voice")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills derived defaults.
func (c *Config) Validate() error {
	var missing []string

	if c.History.Enabled && c.Database.URL == "" {
		missing = append(missing, "VOICE_DATABASE_URL")
	}
	if c.RateLimits.Backend == "redis" && c.Redis.URL == "" {
		missing = append(missing, "VOICE_REDIS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if err := c.RateLimits.validate(); err != nil {
		return err
	}
	if err := c.Providers.validate(); err != nil {
		return err
	}
	if err := c.Audio.validate(); err != nil {
		return err
	}
	c.History.validate()
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if c.Health.ProbeTimeout <= 0 {
		c.Health.ProbeTimeout = 3 * time.Second
	}
	if c.Server.Version == "" {
		c.Server.Version = "0.0.0"
	}
	return nil
}

func (r *RateLimitConfig) validate() error {
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	switch r.Backend {
	case "":
		r.Backend = "memory"
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limits.backend must be memory or redis")
	}
	if r.PipelineCost <= 0 {
		r.PipelineCost = 3
	}
	if r.IdleTTL < 0 {
		return fmt.Errorf("rate_limits.idle_ttl must be >= 0")
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	p.STT = strings.ToLower(strings.TrimSpace(p.STT))
	p.Translate = strings.ToLower(strings.TrimSpace(p.Translate))
	p.TTS = strings.ToLower(strings.TrimSpace(p.TTS))
	p.Embeddings = strings.ToLower(strings.TrimSpace(p.Embeddings))
	if p.STT == "" {
		return fmt.Errorf("providers.stt is required")
	}
	if p.Translate == "" {
		return fmt.Errorf("providers.translate is required")
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 120 * time.Second
	}
	if p.LocalWorkers <= 0 {
		p.LocalWorkers = 2
	}
	p.Ollama.URL = strings.TrimRight(p.Ollama.URL, "/")
	if p.Ollama.EmbeddingURL == "" {
		p.Ollama.EmbeddingURL = p.Ollama.URL
	}
	if p.ElevenLabs.Model == "" {
		p.ElevenLabs.Model = "eleven_multilingual_v2"
	}
	if p.Chatterbox.Voice == "" {
		p.Chatterbox.Voice = "default"
	}
	if p.Vertex.Location == "" {
		p.Vertex.Location = "us-central1"
	}
	p.Vertex.CredentialsFormat = strings.ToLower(strings.TrimSpace(p.Vertex.CredentialsFormat))
	switch p.Vertex.CredentialsFormat {
	case "", "json", "base64":
	default:
		return fmt.Errorf("providers.vertex.credentials_format must be json or base64")
	}
	return nil
}

func (a *AudioConfig) validate() error {
	if a.MaxUploadMB <= 0 {
		a.MaxUploadMB = 25
	}
	a.Storage = strings.ToLower(strings.TrimSpace(a.Storage))
	switch a.Storage {
	case "", "local":
		a.Storage = "local"
		if strings.TrimSpace(a.Local.Directory) == "" {
			a.Local.Directory = "./data/audio"
		}
	case "s3":
		if strings.TrimSpace(a.S3.Bucket) == "" {
			return fmt.Errorf("audio.s3.bucket is required when storage=s3")
		}
	default:
		return fmt.Errorf("audio.storage must be local or s3")
	}
	if a.FFmpegPath == "" {
		a.FFmpegPath = "ffmpeg"
	}
	return nil
}

func (h *HistoryConfig) validate() {
	if h.QueueSize <= 0 {
		h.QueueSize = 256
	}
	if h.Workers <= 0 {
		h.Workers = 2
	}
	if h.JobTimeout <= 0 {
		h.JobTimeout = 60 * time.Second
	}
	if h.SweepInterval <= 0 {
		h.SweepInterval = time.Hour
	}
}

func (a *AuthConfig) validate() error {
	if a.Admin.TokenTTL <= 0 {
		a.Admin.TokenTTL = 12 * time.Hour
	}
	if a.Admin.PasswordHash != "" && len(a.Admin.JWTSecret) < 32 {
		return fmt.Errorf("auth.admin.jwt_secret must be at least 32 characters when admin access is enabled")
	}
	return nil
}

// APIKeyList returns the configured gateway keys with blanks removed.
func (a AuthConfig) APIKeyList() []string {
	return normalizeStringSlice(strings.Split(a.APIKeys, ","))
}

// MaxUploadBytes converts the upload limit to bytes.
func (a AudioConfig) MaxUploadBytes() int64 {
	return int64(a.MaxUploadMB) * 1024 * 1024
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8090")
	v.SetDefault("server.body_limit_mb", 32)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.graceful_shutdown_delay", "10s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("rate_limits.backend", "memory")
	v.SetDefault("rate_limits.requests_per_minute", 60)
	v.SetDefault("rate_limits.pipeline_cost", 3)
	v.SetDefault("rate_limits.idle_ttl", "0s")

	v.SetDefault("providers.stt", "whisper")
	v.SetDefault("providers.translate", "local")
	v.SetDefault("providers.tts", "piper")
	v.SetDefault("providers.embeddings", "ollama")
	v.SetDefault("providers.request_timeout", "120s")
	v.SetDefault("providers.local_workers", 2)
	v.SetDefault("providers.ollama.url", "http://localhost:11434")
	v.SetDefault("providers.ollama.model", "ministral:3b")
	v.SetDefault("providers.ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("providers.openai.chat_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.stt_model", "whisper-1")
	v.SetDefault("providers.openai.tts_model", "gpt-4o-mini-tts")
	v.SetDefault("providers.openai.tts_voice", "alloy")
	v.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("providers.azure.api_version", "2024-07-01-preview")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.version", "2023-06-01")
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("providers.anthropic.max_tokens", 2048)
	v.SetDefault("providers.vertex.project_id", "")
	v.SetDefault("providers.vertex.location", "us-central1")
	v.SetDefault("providers.vertex.model", "gemini-2.0-flash")
	v.SetDefault("providers.vertex.credentials_json", "")
	v.SetDefault("providers.deepl.free", true)
	v.SetDefault("providers.chatterbox.voice", "default")
	v.SetDefault("providers.elevenlabs.model", "eleven_multilingual_v2")
	v.SetDefault("providers.whisper.model", "small")
	v.SetDefault("providers.whisper.device", "auto")
	v.SetDefault("providers.whisper.compute_type", "int8")
	v.SetDefault("providers.whisper.python", "python3")
	v.SetDefault("providers.piper.binary", "piper")
	v.SetDefault("providers.piper.voice", "de_DE-thorsten-high")
	v.SetDefault("providers.piper.voices_dir", "/app/piper-voices")

	v.SetDefault("audio.max_upload_mb", 25)
	v.SetDefault("audio.storage", "local")
	v.SetDefault("audio.local.directory", "./data/audio")
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.queue_size", 256)
	v.SetDefault("history.workers", 2)
	v.SetDefault("history.job_timeout", "60s")
	v.SetDefault("history.sweep_interval", "1h")

	v.SetDefault("benchmarks.enabled", true)
	v.SetDefault("benchmarks.directory", "benchmarks")

	v.SetDefault("auth.api_keys", "")
	v.SetDefault("auth.admin.token_ttl", "12h")

	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_otlp", false)

	v.SetDefault("health.check_interval", "30s")
	v.SetDefault("health.probe_timeout", "3s")
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			if v == "" {
				return time.Duration(0), nil
			}
			if d, err := time.ParseDuration(v); err == nil {
				return d, nil
			}
			// Bare integers are seconds.
			if secs, err := strconv.Atoi(v); err == nil {
				return time.Duration(secs) * time.Second, nil
			}
			return nil, fmt.Errorf("invalid duration %q", v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
