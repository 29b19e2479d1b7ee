package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of the tunables. Zero values leave the
// current setting untouched.
type fileConfig struct {
	Database struct {
		Driver     string `yaml:"driver"`
		SqlitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Blob struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		Bucket  string `yaml:"bucket"`
		Region  string `yaml:"region"`
	} `yaml:"blob"`
	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
		OllamaURL string `yaml:"ollama_url"`
		BatchSize int    `yaml:"batch_size"`
		Workers   int    `yaml:"workers"`
	} `yaml:"embedding"`
	Generation struct {
		Provider    string `yaml:"provider"`
		Model       string `yaml:"model"`
		OllamaModel string `yaml:"ollama_model"`
		Policy      string `yaml:"policy"`
	} `yaml:"generation"`
	Index struct {
		ChunkSize   int     `yaml:"chunk_size"`
		Granularity string  `yaml:"granularity"`
		TopK        int     `yaml:"top_k"`
		MaxDistance float64 `yaml:"max_distance"`
		Snapshot    struct {
			Backend string `yaml:"backend"`
			Path    string `yaml:"path"`
			Key     string `yaml:"key"`
		} `yaml:"snapshot"`
	} `yaml:"index"`
	Chat struct {
		TitleWords int `yaml:"title_words"`
	} `yaml:"chat"`
	Timeouts struct {
		Extract  string `yaml:"extract"`
		Embed    string `yaml:"embed"`
		Generate string `yaml:"generate"`
	} `yaml:"timeouts"`
	HTTP struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.DBDriver, fc.Database.Driver)
	setString(&cfg.SqlitePath, fc.Database.SqlitePath)
	setString(&cfg.BlobBackend, fc.Blob.Backend)
	setString(&cfg.BlobDir, fc.Blob.Dir)
	setString(&cfg.BucketName, fc.Blob.Bucket)
	setString(&cfg.AwsRegion, fc.Blob.Region)
	setString(&cfg.EmbedProvider, fc.Embedding.Provider)
	setString(&cfg.EmbedModel, fc.Embedding.Model)
	setInt(&cfg.EmbedDim, fc.Embedding.Dimension)
	setString(&cfg.OllamaURL, fc.Embedding.OllamaURL)
	setInt(&cfg.EmbedBatchSize, fc.Embedding.BatchSize)
	setInt(&cfg.EmbedWorkers, fc.Embedding.Workers)
	setString(&cfg.GenProvider, fc.Generation.Provider)
	setString(&cfg.GenModel, fc.Generation.Model)
	setString(&cfg.OllamaGenModel, fc.Generation.OllamaModel)
	setString(&cfg.PromptPolicy, fc.Generation.Policy)
	setInt(&cfg.ChunkSize, fc.Index.ChunkSize)
	setString(&cfg.Granularity, fc.Index.Granularity)
	setInt(&cfg.TopK, fc.Index.TopK)
	if fc.Index.MaxDistance > 0 {
		cfg.MaxDistance = fc.Index.MaxDistance
	}
	setString(&cfg.SnapshotBackend, fc.Index.Snapshot.Backend)
	setString(&cfg.SnapshotPath, fc.Index.Snapshot.Path)
	setString(&cfg.SnapshotKey, fc.Index.Snapshot.Key)
	setInt(&cfg.TitleWords, fc.Chat.TitleWords)
	setString(&cfg.Port, fc.HTTP.Port)
	if len(fc.HTTP.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.HTTP.AllowedOrigins
	}

	for _, d := range []struct {
		dst *time.Duration
		raw string
	}{
		{&cfg.ExtractTimeout, fc.Timeouts.Extract},
		{&cfg.EmbedTimeout, fc.Timeouts.Embed},
		{&cfg.GenerateTimeout, fc.Timeouts.Generate},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: bad duration %q: %w", path, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
