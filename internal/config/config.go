package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/speedsters/marketplace-core/internal/log"
)

type Config struct {
	Env     string
	Debug   bool
	DevMode bool

	DataDir string
	ApiPort string
	LogPath string

	CacheExpirationMinutes int
	CacheCleanupMinutes    int
}

func Init(app string) {
	_ = godotenv.Load(".env")

	initLogger(app)
}

func initLogger(app string) {
	cfg := Get()
	path := cfg.LogPath
	if path == "" {
		path = "./var/" + app + ".log"
	}

	log.NewLogger(path, cfg.Debug)
}

func Get() *Config {
	return &Config{
		Env:                    getString("ENV", ""),
		Debug:                  getBool("DEBUG", false),
		DevMode:                getBool("DEV_MODE", false),
		DataDir:                getString("DATA_DIR", "./var/data"),
		ApiPort:                getString("API_PORT", "8080"),
		LogPath:                getString("LOG_PATH", ""),
		CacheExpirationMinutes: getInt("CACHE_EXPIRATION_MINUTES", 5),
		CacheCleanupMinutes:    getInt("CACHE_CLEANUP_MINUTES", 10),
	}
}

func getString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getInt(key string, defaultValue int) int {
	valStr := getString(key, "")
	val, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		return defaultValue
	}

	return val
}

func getBool(key string, defaultValue bool) bool {
	valStr := getString(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultValue
}
