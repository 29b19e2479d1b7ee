package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GranularityChunk    = "chunk"
	GranularityDocument = "document"

	PolicyBlend  = "blend"
	PolicyStrict = "strict"

	// MinJWTSecretLen is the shortest HS256 key the server accepts.
	MinJWTSecretLen = 32
)

type embedDefaults struct {
	model string
	dim   int
}

// providerEmbedDefaults fill EMBED_MODEL and EMBED_DIM when neither the
// file nor the environment names them.
var providerEmbedDefaults = map[string]embedDefaults{
	"ollama": {model: "all-minilm", dim: 384},
	"gemini": {model: "text-embedding-004", dim: 768},
}

type Config struct {
	// persistence
	DBDriver    string
	DatabaseURL string
	SslCertPath string
	SqlitePath  string

	// blob storage
	BlobBackend  string
	BlobDir      string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// models
	AIAPIKey         string
	EmbedProvider    string
	EmbedModel       string
	EmbedDim         int
	OllamaURL        string
	GenProvider      string
	GenModel         string
	OllamaGenModel   string
	UnidocLicenseKey string

	// http
	Port           string
	JWTSecret      string
	AllowedOrigins []string

	// index and retrieval
	ChunkSize      int
	TopK           int
	Granularity    string
	MaxDistance    float64
	PromptPolicy   string
	TitleWords     int
	EmbedBatchSize int
	EmbedWorkers   int
	MaxPageBytes   int

	SnapshotBackend string
	SnapshotPath    string
	SnapshotKey     string

	ExtractTimeout  time.Duration
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Defaults returns the configuration used when neither a config file nor
// the environment says otherwise.
func Defaults() *Config {
	return &Config{
		DBDriver:        "sqlite",
		SqlitePath:      "data/railchat.db",
		BlobBackend:     "local",
		BlobDir:         "data/blobs",
		AwsRegion:       "us-east-2",
		BucketName:      "railchat-docs",
		EmbedProvider:   "ollama",
		EmbedModel:      "all-minilm",
		EmbedDim:        384,
		OllamaURL:       "http://localhost:11434",
		GenModel:        "gemini-1.5-flash",
		OllamaGenModel:  "llama3.2",
		Port:            "8080",
		AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8888"},
		ChunkSize:       512,
		TopK:            5,
		Granularity:     GranularityChunk,
		PromptPolicy:    PolicyBlend,
		TitleWords:      20,
		EmbedBatchSize:  16,
		EmbedWorkers:    2,
		MaxPageBytes:    1_500_000,
		SnapshotBackend: "file",
		SnapshotPath:    "data/index_snapshot.json",
		SnapshotKey:     "index/snapshot.json",
		ExtractTimeout:  60 * time.Second,
		EmbedTimeout:    2 * time.Minute,
		GenerateTimeout: 60 * time.Second,
	}
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Load builds the config from defaults, then the YAML file at path (if
// any), then the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	cfg.EmbedModel, cfg.EmbedDim = "", 0
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	driver := cfg.DBDriver
	if cfg.DatabaseURL != "" {
		driver = "postgres"
	}
	cfg.DBDriver = getEnv("DB_DRIVER", driver)
	cfg.SslCertPath = getEnv("SSL_CERT_PATH", cfg.SslCertPath)
	cfg.SqlitePath = getEnv("SQLITE_PATH", cfg.SqlitePath)

	cfg.BlobBackend = getEnv("BLOB_BACKEND", cfg.BlobBackend)
	cfg.BlobDir = getEnv("BLOB_DIR", cfg.BlobDir)
	cfg.AwsAccessKey = getEnv("AWS_ACCESS_KEY", cfg.AwsAccessKey)
	cfg.AwsSecretKey = getEnv("AWS_SECRET_KEY", cfg.AwsSecretKey)
	cfg.AwsRegion = getEnv("AWS_REGION", cfg.AwsRegion)
	cfg.BucketName = getEnv("BUCKET_NAME", cfg.BucketName)

	cfg.AIAPIKey = getEnv("GEMINI_API_KEY", cfg.AIAPIKey)
	cfg.EmbedProvider = getEnv("EMBED_PROVIDER", cfg.EmbedProvider)
	cfg.EmbedModel = getEnv("EMBED_MODEL", cfg.EmbedModel)
	cfg.EmbedDim = getEnvInt("EMBED_DIM", cfg.EmbedDim)
	if d, ok := providerEmbedDefaults[cfg.EmbedProvider]; ok {
		if cfg.EmbedModel == "" {
			cfg.EmbedModel = d.model
		}
		if cfg.EmbedDim == 0 {
			cfg.EmbedDim = d.dim
		}
	}
	cfg.OllamaURL = getEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.GenModel = getEnv("GEN_MODEL", cfg.GenModel)
	cfg.OllamaGenModel = getEnv("OLLAMA_GEN_MODEL", cfg.OllamaGenModel)
	provider := cfg.GenProvider
	if provider == "" {
		provider = "ollama"
		if cfg.AIAPIKey != "" {
			provider = "gemini"
		}
	}
	cfg.GenProvider = getEnv("GEN_PROVIDER", provider)
	cfg.UnidocLicenseKey = getEnv("UNIDOC_LICENSE_KEY", cfg.UnidocLicenseKey)

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	cfg.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.TopK = getEnvInt("TOP_K", cfg.TopK)
	cfg.Granularity = getEnv("INDEX_GRANULARITY", cfg.Granularity)
	cfg.MaxDistance = getEnvFloat("MAX_DISTANCE", cfg.MaxDistance)
	cfg.PromptPolicy = getEnv("PROMPT_POLICY", cfg.PromptPolicy)
	cfg.TitleWords = getEnvInt("SESSION_TITLE_WORDS", cfg.TitleWords)
	cfg.EmbedBatchSize = getEnvInt("EMBED_BATCH_SIZE", cfg.EmbedBatchSize)
	cfg.EmbedWorkers = getEnvInt("EMBED_WORKERS", cfg.EmbedWorkers)
	cfg.MaxPageBytes = getEnvInt("MAX_PAGE_BYTES", cfg.MaxPageBytes)

	cfg.SnapshotBackend = getEnv("SNAPSHOT_BACKEND", cfg.SnapshotBackend)
	cfg.SnapshotPath = getEnv("SNAPSHOT_PATH", cfg.SnapshotPath)
	cfg.SnapshotKey = getEnv("SNAPSHOT_KEY", cfg.SnapshotKey)

	cfg.ExtractTimeout = getEnvDuration("EXTRACT_TIMEOUT", cfg.ExtractTimeout)
	cfg.EmbedTimeout = getEnvDuration("EMBED_TIMEOUT", cfg.EmbedTimeout)
	cfg.GenerateTimeout = getEnvDuration("GENERATE_TIMEOUT", cfg.GenerateTimeout)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	case c.EmbedDim <= 0:
		return fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim)
	case c.TopK <= 0:
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	case c.TitleWords <= 0:
		return fmt.Errorf("SESSION_TITLE_WORDS must be positive, got %d", c.TitleWords)
	case c.Granularity != GranularityChunk && c.Granularity != GranularityDocument:
		return fmt.Errorf("INDEX_GRANULARITY must be %q or %q, got %q", GranularityChunk, GranularityDocument, c.Granularity)
	case c.PromptPolicy != PolicyBlend && c.PromptPolicy != PolicyStrict:
		return fmt.Errorf("PROMPT_POLICY must be %q or %q, got %q", PolicyBlend, PolicyStrict, c.PromptPolicy)
	case c.DBDriver != "postgres" && c.DBDriver != "sqlite":
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	case c.GenProvider != "gemini" && c.GenProvider != "ollama":
		return fmt.Errorf("GEN_PROVIDER must be gemini or ollama, got %q", c.GenProvider)
	case c.EmbedProvider != "gemini" && c.EmbedProvider != "ollama":
		return fmt.Errorf("EMBED_PROVIDER must be gemini or ollama, got %q", c.EmbedProvider)
	case len(c.JWTSecret) < MinJWTSecretLen:
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLen)
	case c.DBDriver == "postgres" && c.DatabaseURL == "":
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 16
	}
	if c.EmbedWorkers <= 0 {
		c.EmbedWorkers = 1
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
