package main

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/internal/catalog"
	"github.com/GoSim-25-26J-441/annealing-core/internal/forcefield"
	"github.com/GoSim-25-26J-441/annealing-core/internal/metrics"
	"github.com/GoSim-25-26J-441/annealing-core/internal/task"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/config"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// components are the collaborators shared by every controller of a process
type components struct {
	store     artifact.Store
	catalog   *catalog.Catalog
	builder   *forcefield.Builder
	submitter task.Submitter
	conn      *grpc.ClientConn
}

func (c *components) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *components) controllerConfig(m *metrics.Metrics) annealing.Config {
	return annealing.Config{
		Catalog:     c.catalog,
		ForceFields: c.builder,
		Submitter:   c.submitter,
		Store:       c.store,
		Metrics:     m,
	}
}

func buildComponents(cfg *config.Config) (*components, error) {
	store, err := buildStore(cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	cat, err := buildCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	builder, err := forcefield.NewBuilder(cat, cfg.Catalog.CacheSize)
	if err != nil {
		return nil, err
	}
	c := &components{store: store, catalog: cat, builder: builder}
	if err := c.buildSubmitter(cfg.Simulator); err != nil {
		return nil, err
	}
	return c, nil
}

func buildStore(cfg config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case config.ArtifactsS3:
		return artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
	case config.ArtifactsFS:
		return artifact.NewFSStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

func buildCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.MoleculesFile == "" {
		return catalog.Default()
	}
	return catalog.LoadFiles(cfg.MoleculesFile, cfg.ForceFieldsFile)
}

func (c *components) buildSubmitter(cfg config.SimulatorConfig) error {
	switch cfg.Mode {
	case config.SimulatorRemote:
		conn, err := grpc.NewClient(cfg.RemoteAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to dial simulation service %s: %w", cfg.RemoteAddr, err)
		}
		c.conn = conn
		c.submitter = task.NewRemoteRunner(conn, task.RemoteConfig{
			Backoff:     utils.BackoffFromName(cfg.PollBackoff, cfg.PollBase, cfg.PollMax),
			CallTimeout: cfg.CallTimeout,
		})
		return nil
	case config.SimulatorLocal:
		runner, err := task.NewLocalRunner(task.LocalConfig{
			Executable:  cfg.Executable,
			Args:        cfg.Args,
			Env:         cfg.Env,
			WorkDir:     cfg.WorkDir,
			KeepWorkDir: cfg.KeepWorkDir,
			Store:       c.store,
		})
		if err != nil {
			return err
		}
		c.submitter = runner
		return nil
	default:
		return fmt.Errorf("unknown simulator mode %q", cfg.Mode)
	}
}
