// Package config loads the daemon configuration: a YAML file merged with ANNEAL_*
// environment overrides.
package config

import "time"

// Config is the configuration of annealerd
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	HTTPAddr  string `mapstructure:"http_addr"`
	GRPCAddr  string `mapstructure:"grpc_addr"`

	Simulator SimulatorConfig `mapstructure:"simulator"`
	Artifacts ArtifactConfig  `mapstructure:"artifacts"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Callbacks CallbackConfig  `mapstructure:"callbacks"`
}

// Simulator modes
const (
	SimulatorLocal  = "local"
	SimulatorRemote = "remote"
)

// SimulatorConfig selects where stages run. In local mode the executable runs in a
// work directory per stage; in remote mode stages go to a simulation service.
type SimulatorConfig struct {
	Mode        string   `mapstructure:"mode"`
	Executable  string   `mapstructure:"executable"`
	Args        []string `mapstructure:"args"`
	Env         []string `mapstructure:"env"`
	WorkDir     string   `mapstructure:"work_dir"`
	KeepWorkDir bool     `mapstructure:"keep_work_dir"`

	RemoteAddr  string        `mapstructure:"remote_addr"`
	PollBackoff string        `mapstructure:"poll_backoff"`
	PollBase    time.Duration `mapstructure:"poll_base"`
	PollMax     time.Duration `mapstructure:"poll_max"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// Artifact backends
const (
	ArtifactsFS = "fs"
	ArtifactsS3 = "s3"
)

// ArtifactConfig selects the store holding stage artifacts
type ArtifactConfig struct {
	Backend string   `mapstructure:"backend"`
	Root    string   `mapstructure:"root"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CatalogConfig points at molecule and force-field files replacing the embedded ones.
// Both or neither must be set.
type CatalogConfig struct {
	MoleculesFile   string `mapstructure:"molecules_file"`
	ForceFieldsFile string `mapstructure:"forcefields_file"`
	CacheSize       int    `mapstructure:"cache_size"`
}

type CallbackConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	AllowInternal bool          `mapstructure:"allow_internal"`
}
