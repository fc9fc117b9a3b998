package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var configDir string
var configFilePath string
var credentialsPath string

// Settings is a typed snapshot of everything the feed engine reads from config
type Settings struct {
	BaseURL    string
	APITimeout time.Duration

	PollInterval      time.Duration
	WatchlistInterval time.Duration
	MaxRetries        int
	BackoffCap        time.Duration
	RateLimitFallback time.Duration
	PageSize          int
	ReconcileInterval time.Duration
	AuthCheckInterval time.Duration

	CursorBackend string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	LogLevel    string
	LogFile     string
	MetricsAddr string
	RealtimeURL string
}

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\solfeed
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "solfeed"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/solfeed
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "solfeed"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "solfeed", "config.toml")}
	}

	return []string{
		"/etc/solfeed/config.toml",
		"/usr/local/etc/solfeed/config.toml",
	}
}

// Init initializes the configuration. Precedence, lowest first: defaults,
// system config, user config, .env file, SOLFEED_* environment.
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	viper.Reset()
	viper.SetConfigType("toml")

	setDefaults()

	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	viper.SetConfigFile(configFilePath)
	_ = viper.ReadInConfig()

	// A missing .env is normal outside development
	_ = godotenv.Load()

	viper.SetEnvPrefix("SOLFEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:3001")
	viper.SetDefault("api.timeout", 30)

	viper.SetDefault("poll.interval", "15s")
	viper.SetDefault("poll.watchlist_interval", "30s")
	viper.SetDefault("poll.max_retries", 3)
	viper.SetDefault("poll.backoff_cap", "5m")
	viper.SetDefault("poll.rate_limit_fallback", "60s")
	viper.SetDefault("poll.page_size", 20)

	viper.SetDefault("reconcile.interval", "10s")
	viper.SetDefault("auth.check_interval", "30s")

	viper.SetDefault("cursor.backend", "memory")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "solfeed")

	viper.SetDefault("output.format", "text")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "solfeed.log"))
	viper.SetDefault("metrics.addr", "")
	viper.SetDefault("realtime.url", "")
}

// Load returns the current configuration as Settings
func Load() Settings {
	return Settings{
		BaseURL:    GetString("api.base_url"),
		APITimeout: time.Duration(GetInt("api.timeout")) * time.Second,

		PollInterval:      GetDuration("poll.interval"),
		WatchlistInterval: GetDuration("poll.watchlist_interval"),
		MaxRetries:        GetInt("poll.max_retries"),
		BackoffCap:        GetDuration("poll.backoff_cap"),
		RateLimitFallback: GetDuration("poll.rate_limit_fallback"),
		PageSize:          GetInt("poll.page_size"),
		ReconcileInterval: GetDuration("reconcile.interval"),
		AuthCheckInterval: GetDuration("auth.check_interval"),

		CursorBackend: GetString("cursor.backend"),
		RedisAddr:     GetString("redis.addr"),
		RedisPassword: GetString("redis.password"),
		RedisDB:       GetInt("redis.db"),
		RedisPrefix:   GetString("redis.prefix"),

		LogLevel:    GetString("log.level"),
		LogFile:     GetString("log.file"),
		MetricsAddr: GetString("metrics.addr"),
		RealtimeURL: GetString("realtime.url"),
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration configuration value ("15s", "5m")
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Set overrides a value for the rest of the process without touching disk
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string configuration value and persists the config file
func SetString(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfigAs(configFilePath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}
