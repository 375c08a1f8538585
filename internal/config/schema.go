package config

// Config is the top-level YAML structure.
type Config struct {
	Server     ServerConf     `yaml:"server"`
	Repository RepositoryConf `yaml:"repository"`
	Metrics    MetricsConf    `yaml:"metrics"`
	Logging    LoggingConf    `yaml:"logging"`
	Ingest     IngestConf     `yaml:"ingest"`
	Tracing    TracingConf    `yaml:"tracing"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr              string `yaml:"addr"`
	ReadTimeoutMs     int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs    int    `yaml:"write_timeout_ms"`
	IdleTimeoutMs     int    `yaml:"idle_timeout_ms"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
}

// RepositoryConf selects the storage backend. It is read once at start.
type RepositoryConf struct {
	Kind  string    `yaml:"kind"` // memory | noop | redis
	Redis RedisConf `yaml:"redis"`
}

// RedisConf is used only when Kind is "redis".
type RedisConf struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConf selects the metrics recorder.
type MetricsConf struct {
	Kind string `yaml:"kind"` // prom | noop
}

// LoggingConf controls log output. Level is applied again on every reload.
type LoggingConf struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// IngestConf sizes the batch ingestion worker pool.
type IngestConf struct {
	Workers      int `yaml:"workers"`
	QueueDepth   int `yaml:"queue_depth"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// TracingConf toggles span export to stdout.
type TracingConf struct {
	Enabled bool `yaml:"enabled"`
}
