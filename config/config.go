package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Router        RouterConfig        `json:"router"`
	Auth          AuthConfig          `json:"auth"`
	Logging       LoggingConfig       `json:"logging"`
	LLM           LLMConfig           `json:"llm"`
	Embedding     EmbeddingConfig     `json:"embedding"`
	ObjectStorage ObjectStorageConfig `json:"object_storage"`
	Connectors    ConnectorsConfig    `json:"connectors"`
	Secret        SecretConfig        `json:"secret"`
	Redis         RedisConfig         `json:"redis"`
	MCP           MCPConfig           `json:"mcp"`
}

// MCPConfig holds configuration for MCP tool integration
type MCPConfig struct {
	ServerURL         string `json:"server_url"`
	Timeout           int    `json:"timeout"`
	MaxToolIterations int    `json:"max_tool_iterations"`
	Enabled           bool   `json:"enabled"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxLifetime  int    `json:"max_lifetime"`
}

type RouterConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Timeout    int    `json:"timeout"`
	MaxRetries int    `json:"max_retries"`
}

type AuthConfig struct {
	JWTSecret      string   `json:"jwt_secret"`
	JWTExpiration  int      `json:"jwt_expiration"`
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedIssuers []string `json:"allowed_issuers"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

// LLMSlotConfig is one named model slot's endpoint configuration, the
// per-slot element of LLMConfig.
type LLMSlotConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	Timeout    int    `json:"timeout"`
	MaxRetries int    `json:"max_retries"`
}

// LLMConfig generalizes the teacher's single RouterConfig into a list of
// named provider slots (chat, summarizer, report, ...) so internal/llm's
// Router can fan out to more than one upstream model.
type LLMConfig struct {
	Slots map[string]LLMSlotConfig `json:"slots"`
}

// EmbeddingConfig holds the embedding provider's endpoint configuration.
type EmbeddingConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Timeout   int    `json:"timeout"`
	Dimension int    `json:"dimension"`
}

// ObjectStorageConfig holds MinIO endpoint/bucket/credentials for podcast
// audio, grounded on yanqian-ai-helloworld's R2Storage wrapper around an
// S3-compatible client.
type ObjectStorageConfig struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	UseSSL    bool   `json:"use_ssl"`
}

// ConnectorConfig is one connector kind's OAuth client credentials, rate
// limit, and default lookback window.
type ConnectorConfig struct {
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
	DefaultLookback int    `json:"default_lookback_hours"`
}

// ConnectorsConfig holds one ConnectorConfig per connector kind
// ("google_drive", "youtube", "linear", "mcp", "generic_page").
type ConnectorsConfig struct {
	Kinds map[string]ConnectorConfig `json:"kinds"`
}

// SecretConfig holds the process-wide AES-GCM key used to encrypt
// connector credential fields at rest.
type SecretConfig struct {
	EncryptionKey string `json:"-"`
}

// RedisConfig holds configuration for Redis caching
type RedisConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Password          string `json:"password"`
	DB                int    `json:"db"`
	ContextCacheTTL   int    `json:"context_cache_ttl"`   // TTL for document context cache in seconds
	EnableContextCache bool  `json:"enable_context_cache"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "tasuser"),
			Password:     getEnv("DB_PASSWORD", "taspassword"),
			Name:         getEnv("DB_NAME", "tas_shared"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		Router: RouterConfig{
			BaseURL:    getEnv("ROUTER_BASE_URL", "http://localhost:8081"),
			APIKey:     getEnv("ROUTER_API_KEY", ""),
			Timeout:    getEnvAsInt("ROUTER_TIMEOUT", 30),
			MaxRetries: getEnvAsInt("ROUTER_MAX_RETRIES", 3),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			JWTExpiration:  getEnvAsInt("JWT_EXPIRATION", 3600),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedIssuers: getEnvAsSlice("JWT_ALLOWED_ISSUERS", []string{}),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 7),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		LLM: LLMConfig{
			Slots: map[string]LLMSlotConfig{
				"chat": {
					BaseURL:    getEnv("LLM_CHAT_BASE_URL", "http://localhost:8081"),
					Model:      getEnv("LLM_CHAT_MODEL", "gpt-4o-mini"),
					APIKey:     getEnv("LLM_CHAT_API_KEY", ""),
					Timeout:    getEnvAsInt("LLM_CHAT_TIMEOUT", 60),
					MaxRetries: getEnvAsInt("LLM_CHAT_MAX_RETRIES", 3),
				},
				"summarizer": {
					BaseURL:    getEnv("LLM_SUMMARIZER_BASE_URL", getEnv("LLM_CHAT_BASE_URL", "http://localhost:8081")),
					Model:      getEnv("LLM_SUMMARIZER_MODEL", "gpt-4o-mini"),
					APIKey:     getEnv("LLM_SUMMARIZER_API_KEY", getEnv("LLM_CHAT_API_KEY", "")),
					Timeout:    getEnvAsInt("LLM_SUMMARIZER_TIMEOUT", 30),
					MaxRetries: getEnvAsInt("LLM_SUMMARIZER_MAX_RETRIES", 3),
				},
				"report": {
					BaseURL:    getEnv("LLM_REPORT_BASE_URL", getEnv("LLM_CHAT_BASE_URL", "http://localhost:8081")),
					Model:      getEnv("LLM_REPORT_MODEL", "gpt-4o"),
					APIKey:     getEnv("LLM_REPORT_API_KEY", getEnv("LLM_CHAT_API_KEY", "")),
					Timeout:    getEnvAsInt("LLM_REPORT_TIMEOUT", 90),
					MaxRetries: getEnvAsInt("LLM_REPORT_MAX_RETRIES", 3),
				},
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8082"),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			Timeout:   getEnvAsInt("EMBEDDING_TIMEOUT", 30),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		},
		ObjectStorage: ObjectStorageConfig{
			Endpoint:  getEnv("OBJECT_STORAGE_ENDPOINT", "localhost:9000"),
			Bucket:    getEnv("OBJECT_STORAGE_BUCKET", "podcasts"),
			Region:    getEnv("OBJECT_STORAGE_REGION", "us-east-1"),
			AccessKey: getEnv("OBJECT_STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("OBJECT_STORAGE_SECRET_KEY", ""),
			UseSSL:    getEnvAsBool("OBJECT_STORAGE_USE_SSL", false),
		},
		Connectors: ConnectorsConfig{
			Kinds: map[string]ConnectorConfig{
				"google_drive": {
					ClientID:        getEnv("GOOGLE_DRIVE_CLIENT_ID", ""),
					ClientSecret:    getEnv("GOOGLE_DRIVE_CLIENT_SECRET", ""),
					RateLimitPerMin: getEnvAsInt("GOOGLE_DRIVE_RATE_LIMIT_PER_MIN", 60),
					DefaultLookback: getEnvAsInt("GOOGLE_DRIVE_DEFAULT_LOOKBACK_HOURS", 24),
				},
				"youtube": {
					ClientID:        getEnv("YOUTUBE_CLIENT_ID", ""),
					ClientSecret:    getEnv("YOUTUBE_CLIENT_SECRET", ""),
					RateLimitPerMin: getEnvAsInt("YOUTUBE_RATE_LIMIT_PER_MIN", 30),
					DefaultLookback: getEnvAsInt("YOUTUBE_DEFAULT_LOOKBACK_HOURS", 168),
				},
				"linear": {
					ClientID:        getEnv("LINEAR_CLIENT_ID", ""),
					ClientSecret:    getEnv("LINEAR_CLIENT_SECRET", ""),
					RateLimitPerMin: getEnvAsInt("LINEAR_RATE_LIMIT_PER_MIN", 120),
					DefaultLookback: getEnvAsInt("LINEAR_DEFAULT_LOOKBACK_HOURS", 24),
				},
				"generic_page": {
					RateLimitPerMin: getEnvAsInt("GENERIC_PAGE_RATE_LIMIT_PER_MIN", 30),
					DefaultLookback: getEnvAsInt("GENERIC_PAGE_DEFAULT_LOOKBACK_HOURS", 24),
				},
				"mcp": {
					RateLimitPerMin: getEnvAsInt("MCP_CONNECTOR_RATE_LIMIT_PER_MIN", 60),
				},
			},
		},
		Secret: SecretConfig{
			EncryptionKey: getEnv("CONNECTOR_ENCRYPTION_KEY", "change-this-32-byte-secret-key!!"),
		},
		Redis: RedisConfig{
			Host:               getEnv("REDIS_HOST", "localhost"),
			Port:               getEnvAsInt("REDIS_PORT", 6379),
			Password:           getEnv("REDIS_PASSWORD", ""),
			DB:                 getEnvAsInt("REDIS_DB", 0),
			ContextCacheTTL:    getEnvAsInt("REDIS_CONTEXT_CACHE_TTL", 1800), // 30 minutes default
			EnableContextCache: getEnvAsBool("REDIS_ENABLE_CONTEXT_CACHE", true),
		},
		MCP: MCPConfig{
			ServerURL:         getEnv("MCP_SERVER_URL", "http://napkin-mcp.tas-mcp-servers.svc.cluster.local:8087"),
			Timeout:           getEnvAsInt("MCP_TIMEOUT", 120),
			MaxToolIterations: getEnvAsInt("MCP_MAX_TOOL_ITERATIONS", 10),
			Enabled:           getEnvAsBool("MCP_ENABLED", true),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateConfig(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required (DB_PASSWORD)")
	}
	
	if config.Router.BaseURL == "" {
		return fmt.Errorf("router base URL is required (ROUTER_BASE_URL)")
	}
	
	// Router API key is optional - router may not require authentication
	// if config.Router.APIKey == "" {
	//	return fmt.Errorf("router API key is required (ROUTER_API_KEY)")
	// }
	
	if config.Auth.JWTSecret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT secret must be changed from default value (JWT_SECRET)")
	}

	if chat, ok := config.LLM.Slots["chat"]; !ok || chat.BaseURL == "" {
		return fmt.Errorf("chat LLM base URL is required (LLM_CHAT_BASE_URL)")
	}

	if len(config.Secret.EncryptionKey) != 32 {
		return fmt.Errorf("connector encryption key must be exactly 32 bytes (CONNECTOR_ENCRYPTION_KEY)")
	}
	if config.Secret.EncryptionKey == "change-this-32-byte-secret-key!!" {
		return fmt.Errorf("connector encryption key must be changed from default value (CONNECTOR_ENCRYPTION_KEY)")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}