package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	AdminAddr       string
	DBPath          string
	RatesPath       string
	MulticastAddr   string
	RewardInterval  time.Duration
	PersistInterval time.Duration
	AuthorShare     float64
	PrettyLog       bool
}

func Load() *Config {
	return &Config{
		ListenAddr:      getenv("LISTEN_ADDR", ":6789"),
		AdminAddr:       getenv("ADMIN_ADDR", ":8080"),
		DBPath:          getenv("DB_PATH", "./data/social.db"),
		RatesPath:       getenv("RATES_PATH", "./data/rates.json"),
		MulticastAddr:   getenv("MULTICAST_ADDR", "239.255.32.32:44444"),
		RewardInterval:  getduration("REWARD_INTERVAL", 30*time.Second),
		PersistInterval: getduration("PERSIST_INTERVAL", 10*time.Second),
		AuthorShare:     getfloat("AUTHOR_SHARE", 0.7),
		PrettyLog:       getenv("PRETTY_LOG", "false") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
