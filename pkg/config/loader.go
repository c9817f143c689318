package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ANNEAL"

var defaults = map[string]any{
	"log_level":                "info",
	"log_format":               "json",
	"http_addr":                ":8080",
	"grpc_addr":                ":50051",
	"simulator.mode":           SimulatorLocal,
	"simulator.executable":     "simulate",
	"simulator.args":           []string{},
	"simulator.env":            []string{},
	"simulator.work_dir":       "",
	"simulator.keep_work_dir":  false,
	"simulator.remote_addr":    "",
	"simulator.poll_backoff":   "exponential",
	"simulator.poll_base":      time.Second,
	"simulator.poll_max":       time.Minute,
	"simulator.call_timeout":   30 * time.Second,
	"artifacts.backend":        ArtifactsFS,
	"artifacts.root":           "artifacts",
	"artifacts.s3.endpoint":    "",
	"artifacts.s3.region":      "",
	"artifacts.s3.access_key":  "",
	"artifacts.s3.secret_key":  "",
	"artifacts.s3.bucket":      "annealing-artifacts",
	"artifacts.s3.use_ssl":     false,
	"catalog.molecules_file":   "",
	"catalog.forcefields_file": "",
	"catalog.cache_size":       64,
	"callbacks.timeout":        10 * time.Second,
	"callbacks.max_retries":    3,
	"callbacks.allow_internal": false,
}

// newViper returns a viper instance with every key defaulted, so that ANNEAL_*
// variables override keys the file does not mention.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads the YAML file at path, applies ANNEAL_* overrides and validates the
// result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return finalize(v)
}

// Parse is Load for YAML text
func Parse(yamlText string) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(strings.NewReader(yamlText)); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	return finalize(v)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg, err := finalize(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

func finalize(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
