// Package config loads and holds the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Conf is the global configuration loaded at startup.
var Conf Config

// Config mirrors the structure of config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Guard         GuardConfig         `mapstructure:"guard"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Cache         CacheConfig         `mapstructure:"cache"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig groups all datastore connections.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig holds the ingest queue settings.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// TikaConfig holds the Tika extraction server settings.
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig holds the search index settings.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig holds the object storage settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	Dimensions     int    `mapstructure:"dimensions"`
	BatchSize      int    `mapstructure:"batch_size"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryBaseDelay int    `mapstructure:"retry_base_delay_ms"`
}

// LLMConfig holds the completion provider settings.
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig tunes generation parameters (optional).
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig tunes the system prompt and context wrapping.
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// RetrievalConfig holds the chunking, fusion and packing defaults.
// The fusion weights and score threshold are tunables, not derived constants.
type RetrievalConfig struct {
	ChunkSize      int     `mapstructure:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap"`
	TopK           int     `mapstructure:"top_k"`
	RecallK        int     `mapstructure:"recall_k"`
	RRFK           int     `mapstructure:"rrf_k"`
	LexicalWeight  float64 `mapstructure:"lexical_weight"`
	VectorWeight   float64 `mapstructure:"vector_weight"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	FusionMethod   string  `mapstructure:"fusion_method"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	ReserveTokens  int     `mapstructure:"reserve_tokens"`
}

// GuardConfig holds the injection guard settings.
type GuardConfig struct {
	SnippetMaxLen int `mapstructure:"snippet_max_len"`
}

// RateLimitConfig holds the per-tenant token bucket settings.
type RateLimitConfig struct {
	Capacity   int     `mapstructure:"capacity"`
	RefillRate float64 `mapstructure:"refill_per_second"`
}

// CacheConfig holds the query cache settings.
type CacheConfig struct {
	Capacity   int `mapstructure:"capacity"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Init reads the YAML file at configPath into Conf and applies defaults
// for the retrieval tunables.
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("retrieval.chunk_size", 800)
	viper.SetDefault("retrieval.chunk_overlap", 160)
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.recall_k", 50)
	viper.SetDefault("retrieval.rrf_k", 60)
	viper.SetDefault("retrieval.lexical_weight", 0.3)
	viper.SetDefault("retrieval.vector_weight", 0.7)
	viper.SetDefault("retrieval.score_threshold", 0.01)
	viper.SetDefault("retrieval.fusion_method", "rrf")
	viper.SetDefault("retrieval.max_tokens", 4000)
	viper.SetDefault("retrieval.reserve_tokens", 100)
	viper.SetDefault("guard.snippet_max_len", 500)
	viper.SetDefault("embedding.batch_size", 100)
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.retry_base_delay_ms", 200)
	viper.SetDefault("rate_limit.capacity", 30)
	viper.SetDefault("rate_limit.refill_per_second", 5)
	viper.SetDefault("cache.capacity", 256)
	viper.SetDefault("cache.ttl_seconds", 300)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}
}
