package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Sync
		Audit
		Global
		Database
		Security
		Logging
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Sync struct {
		Enabled            bool
		Schedule           string // Cron format: "*/15 * * * *" = every 15 minutes
		MaxParallelServers int
		PerServerLimit     int           // In-flight remote calls per server (default: 1)
		StaleClaimAfter    time.Duration // SYNCING rows older than this are claimed again
		ConfigFile         string        // Optional YAML file with a servers: list
		ManualLimit        int           // Manual "sync now" requests per client per window, 0 disables
		ManualWindow       time.Duration
	}
	Audit struct {
		RetentionDays int // Days to keep audit events (default: 30)
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Security struct {
		SecretKey string // Derives the key that encrypts server tokens
	}
	Logging struct {
		File      string // Empty logs to stderr only
		MaxSizeMB int
		MaxFiles  int
	}
	Tasks struct {
		Enabled           bool
		DatabasePath      string
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
)

// ServerEntry is one server listed in the YAML config file.
type ServerEntry struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("secret_key", "")
	v.SetDefault("audit_retention_days", 30)

	// Sync defaults
	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_schedule", "*/15 * * * *") // Every 15 minutes
	v.SetDefault("sync_max_parallel_servers", 4)
	v.SetDefault("sync_per_server_concurrency", 1)
	v.SetDefault("sync_stale_claim_after", "15m")
	v.SetDefault(EnvConfigFile, "")
	v.SetDefault("sync_manual_limit", 6)
	v.SetDefault("sync_manual_window", "1m")

	// Logging defaults
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_files", 3)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_database_path", DefaultTasksDatabasePath)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Sync: Sync{
			Enabled:            v.GetBool("SYNC_ENABLED"),
			Schedule:           v.GetString("SYNC_SCHEDULE"),
			MaxParallelServers: v.GetInt("SYNC_MAX_PARALLEL_SERVERS"),
			PerServerLimit:     v.GetInt("SYNC_PER_SERVER_CONCURRENCY"),
			StaleClaimAfter:    v.GetDuration("SYNC_STALE_CLAIM_AFTER"),
			ConfigFile:         v.GetString(EnvConfigFile),
			ManualLimit:        v.GetInt("SYNC_MANUAL_LIMIT"),
			ManualWindow:       v.GetDuration("SYNC_MANUAL_WINDOW"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Security: Security{
			SecretKey: v.GetString("SECRET_KEY"),
		},
		Logging: Logging{
			File:      v.GetString("LOG_FILE"),
			MaxSizeMB: v.GetInt("LOG_MAX_SIZE_MB"),
			MaxFiles:  v.GetInt("LOG_MAX_FILES"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			DatabasePath:      v.GetString("TASKS_DATABASE_PATH"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
	}
}

// LoadServers reads the servers list from a YAML config file.
//
//	servers:
//	  - id: home
//	    name: Home library
//	    url: https://books.example.com
//	    token: ...
func LoadServers(path string) ([]ServerEntry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var servers []ServerEntry
	if err := v.UnmarshalKey("servers", &servers); err != nil {
		return nil, fmt.Errorf("failed to parse servers in %s: %w", path, err)
	}
	for i, s := range servers {
		if s.ID == "" || s.URL == "" {
			return nil, fmt.Errorf("server #%d in %s: id and url are required", i+1, path)
		}
	}
	return servers, nil
}
