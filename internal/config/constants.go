package config

const (
	// DefaultDatabasePath is the default path for the reading-state database
	DefaultDatabasePath = "./shelfsync.db"

	// DefaultTasksDatabasePath is the default path for the background task queue
	DefaultTasksDatabasePath = "./shelfsync-tasks.db"

	// EnvConfigFile names the optional YAML file listing servers
	EnvConfigFile = "SHELFSYNC_CONFIG"
)
