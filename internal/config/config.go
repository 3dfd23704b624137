package config

import (
	"os"
	"time"
)

// placeholderAPIKey is treated the same as an unset key so a copied sample
// env file never results in live calls.
const placeholderAPIKey = "your-openai-api-key-here"

// Config is built once in main and passed by value; nothing mutates it after
// startup and nothing else reads the environment.
type Config struct {
	Addr           string
	DBPath         string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	VisionModel    string
	RequestTimeout time.Duration
}

func Load() Config {
	return Config{
		Addr:           getenv("ADDR", ":8080"),
		DBPath:         getenv("DB_PATH", "studybuddy.db"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		ChatModel:      getenv("CHAT_MODEL", "gpt-3.5-turbo"),
		VisionModel:    getenv("VISION_MODEL", "gpt-4o"),
		RequestTimeout: getduration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// AIConfigured reports whether an outbound model call could ever succeed.
func (c Config) AIConfigured() bool {
	return c.OpenAIAPIKey != "" && c.OpenAIAPIKey != placeholderAPIKey
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
