package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec"`
}
type Services struct {
	ASR         Service `yaml:"asr" mapstructure:"asr"`
	Diarization Service `yaml:"diarization" mapstructure:"diarization"`
	Embedding   Service `yaml:"embedding" mapstructure:"embedding"`
	LLM         Service `yaml:"llm" mapstructure:"llm"`
}
type Audio struct {
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int    `yaml:"channels" mapstructure:"channels"`
	Format     string `yaml:"format" mapstructure:"format"`
	Language   string `yaml:"language" mapstructure:"language"`
}
type Diarization struct {
	MinSpeakers int     `yaml:"min_speakers" mapstructure:"min_speakers"`
	MaxSpeakers int     `yaml:"max_speakers" mapstructure:"max_speakers"`
	MergeGap    float64 `yaml:"merge_gap" mapstructure:"merge_gap"` // seconds
}
type Retrieval struct {
	TopK          int  `yaml:"top_k" mapstructure:"top_k"`
	ContextRadius int  `yaml:"context_radius" mapstructure:"context_radius"`
	Semantic      bool `yaml:"semantic" mapstructure:"semantic"`
}
type Redis struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}
type Cassandra struct {
	Hosts    []string `yaml:"hosts" mapstructure:"hosts"`
	Keyspace string   `yaml:"keyspace" mapstructure:"keyspace"`
	Table    string   `yaml:"table" mapstructure:"table"`
}
type Index struct {
	Backend   string    `yaml:"backend" mapstructure:"backend"` // file|redis|cassandra
	Redis     Redis     `yaml:"redis" mapstructure:"redis"`
	Cassandra Cassandra `yaml:"cassandra" mapstructure:"cassandra"`
}
type Pipeline struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
}
type Root struct {
	Pipeline    Pipeline    `yaml:"pipeline" mapstructure:"pipeline"`
	Audio       Audio       `yaml:"audio" mapstructure:"audio"`
	Services    Services    `yaml:"services" mapstructure:"services"`
	Diarization Diarization `yaml:"diarization" mapstructure:"diarization"`
	Retrieval   Retrieval   `yaml:"retrieval" mapstructure:"retrieval"`
	Index       Index       `yaml:"index" mapstructure:"index"`
	Paths       Paths       `yaml:"paths" mapstructure:"paths"`
}

var defaults = map[string]any{
	"pipeline.name":      "meeting-intelligence",
	"pipeline.version":   "0.1.0",
	"pipeline.log_level": "info",

	"audio.sample_rate": 16000,
	"audio.channels":    1,
	"audio.format":      "wav",
	"audio.language":    "en",

	"services.asr.url":                 "http://localhost:9001",
	"services.asr.model":               "medium.en",
	"services.asr.api_key":             "",
	"services.asr.timeout_sec":         300,
	"services.diarization.url":         "http://localhost:9002",
	"services.diarization.model":       "pyannote/speaker-diarization-community-1",
	"services.diarization.api_key":     "",
	"services.diarization.timeout_sec": 1800,
	"services.embedding.url":           "",
	"services.embedding.model":         "text-embedding-3-small",
	"services.embedding.api_key":       "",
	"services.embedding.timeout_sec":   60,
	"services.llm.url":                 "",
	"services.llm.model":               "gpt-4o-mini",
	"services.llm.api_key":             "",
	"services.llm.timeout_sec":         60,

	"diarization.min_speakers": 2,
	"diarization.max_speakers": 10,
	"diarization.merge_gap":    1.0,

	"retrieval.top_k":          10,
	"retrieval.context_radius": 2,
	"retrieval.semantic":       true,

	"index.backend":            "file",
	"index.redis.addr":         "localhost:6379",
	"index.redis.password":     "",
	"index.redis.db":           0,
	"index.redis.prefix":       "meeting",
	"index.cassandra.hosts":    []string{"localhost"},
	"index.cassandra.keyspace": "meeting_db",
	"index.cassandra.table":    "utterance_embeddings",

	"paths.recordings":   "recordings",
	"paths.processed":    filepath.Join("meetings", "processed"),
	"paths.speaker_maps": filepath.Join("meetings", "speaker_maps"),
}

// Load reads configuration from path, or from the per-environment lookup
// locations when path is empty. A missing config file is not an error when
// no explicit path was given; defaults and MEETING_* variables still apply.
func Load(path string) (*Root, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded .env")
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("MEETING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join("config", env))
		v.AddConfigPath(filepath.Join("src", "shared"))
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Root) Validate() error {
	switch c.Index.Backend {
	case "file", "redis", "cassandra":
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	if c.Diarization.MinSpeakers > c.Diarization.MaxSpeakers {
		return fmt.Errorf("config: min_speakers %d exceeds max_speakers %d",
			c.Diarization.MinSpeakers, c.Diarization.MaxSpeakers)
	}
	if c.Diarization.MergeGap < 0 {
		return errors.New("config: merge_gap must not be negative")
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("config: retrieval.top_k must be positive")
	}
	if c.Retrieval.ContextRadius < 0 {
		return errors.New("config: retrieval.context_radius must not be negative")
	}
	return nil
}

// ConfigureLogging applies pipeline.log_level to the standard logrus logger.
func (c *Root) ConfigureLogging() error {
	lvl, err := logrus.ParseLevel(c.Pipeline.LogLvl)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Dump writes the effective configuration as YAML. API keys are redacted.
func (c *Root) Dump(w io.Writer) error {
	out := *c
	for _, s := range []*Service{&out.Services.ASR, &out.Services.Diarization, &out.Services.Embedding, &out.Services.LLM} {
		if s.APIKey != "" {
			s.APIKey = "***"
		}
	}
	if out.Index.Redis.Password != "" {
		out.Index.Redis.Password = "***"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
