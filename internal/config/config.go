package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"questions"`
	Session struct {
		// Store is one of sqlite, redis or memory.
		Store      string `yaml:"store"`
		SQLitePath string `yaml:"sqlitePath"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`
	Leaderboard struct {
		// Store is one of memory, redis or postgres.
		Store      string   `yaml:"store"`
		Capacity   int      `yaml:"capacity"`
		TopN       int      `yaml:"topN"`
		RateLimit  int      `yaml:"rateLimit"`
		RateWindow string   `yaml:"rateWindow"`
		TTL        string   `yaml:"ttl"`
		Denylist   []string `yaml:"denylist"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path. A missing file yields defaults so the
// service can run from environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("QUESTION_BANK_PATH"); v != "" {
		c.Questions.Path = v
	}
	if v := os.Getenv("SESSION_STORE"); v != "" {
		c.Session.Store = v
	}
	if v := os.Getenv("LEADERBOARD_STORE"); v != "" {
		c.Leaderboard.Store = v
	}
}

func (c *Config) applyDefaults() {
	if c.Questions.Path == "" {
		c.Questions.Path = "data/qa_normalized.json"
	}
	if c.Session.Store == "" {
		c.Session.Store = "sqlite"
	}
	if c.Session.SQLitePath == "" {
		c.Session.SQLitePath = "sessions.db"
	}
	if c.Leaderboard.Store == "" {
		c.Leaderboard.Store = "memory"
	}
	if c.Leaderboard.Capacity <= 0 {
		c.Leaderboard.Capacity = 1000
	}
	if c.Leaderboard.TopN <= 0 {
		c.Leaderboard.TopN = 20
	}
	if c.Leaderboard.RateLimit <= 0 {
		c.Leaderboard.RateLimit = 5
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
