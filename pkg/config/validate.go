package config

import (
	"fmt"
	"strings"
)

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}
	if cfg.HTTPAddr == "" && cfg.GRPCAddr == "" {
		return fmt.Errorf("at least one of http_addr and grpc_addr must be set")
	}

	if err := validateSimulator(&cfg.Simulator); err != nil {
		return err
	}
	if err := validateArtifacts(&cfg.Artifacts); err != nil {
		return err
	}
	if err := validateCatalog(&cfg.Catalog); err != nil {
		return err
	}
	if cfg.Callbacks.MaxRetries < 0 {
		return fmt.Errorf("callbacks.max_retries must be non-negative")
	}
	if cfg.Callbacks.Timeout <= 0 {
		return fmt.Errorf("callbacks.timeout must be positive")
	}
	return nil
}

func validateSimulator(s *SimulatorConfig) error {
	switch s.Mode {
	case SimulatorLocal:
		if strings.TrimSpace(s.Executable) == "" {
			return fmt.Errorf("simulator.executable is required in local mode")
		}
	case SimulatorRemote:
		if strings.TrimSpace(s.RemoteAddr) == "" {
			return fmt.Errorf("simulator.remote_addr is required in remote mode")
		}
	default:
		return fmt.Errorf("invalid simulator.mode: %s (must be local or remote)", s.Mode)
	}

	switch s.PollBackoff {
	case "constant", "linear", "exponential", "exponential-nojitter":
	default:
		return fmt.Errorf("invalid simulator.poll_backoff: %s", s.PollBackoff)
	}
	if s.PollBase <= 0 {
		return fmt.Errorf("simulator.poll_base must be positive")
	}
	if s.PollMax < s.PollBase {
		return fmt.Errorf("simulator.poll_max must be at least poll_base")
	}
	if s.CallTimeout <= 0 {
		return fmt.Errorf("simulator.call_timeout must be positive")
	}
	return nil
}

func validateArtifacts(a *ArtifactConfig) error {
	switch a.Backend {
	case ArtifactsFS:
		if strings.TrimSpace(a.Root) == "" {
			return fmt.Errorf("artifacts.root is required for the fs backend")
		}
	case ArtifactsS3:
		if strings.TrimSpace(a.S3.Endpoint) == "" {
			return fmt.Errorf("artifacts.s3.endpoint is required for the s3 backend")
		}
		if strings.TrimSpace(a.S3.Bucket) == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid artifacts.backend: %s (must be fs or s3)", a.Backend)
	}
	return nil
}

func validateCatalog(c *CatalogConfig) error {
	if (c.MoleculesFile == "") != (c.ForceFieldsFile == "") {
		return fmt.Errorf("catalog.molecules_file and catalog.forcefields_file must be set together")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("catalog.cache_size must be positive")
	}
	return nil
}
