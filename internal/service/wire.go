package service

import (
	"context"
	"fmt"

	"github.com/picklr-io/infraviz/internal/config"
	"github.com/picklr-io/infraviz/internal/cost"
	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/events"
	"github.com/picklr-io/infraviz/internal/extract"
	"github.com/picklr-io/infraviz/internal/generator"
	"github.com/picklr-io/infraviz/internal/logging"
	"github.com/picklr-io/infraviz/internal/session"
	"github.com/picklr-io/infraviz/internal/snapshot"
)

// Runtime is a Service together with the resources it holds open.
type Runtime struct {
	*Service
	runner    engine.Runner
	publisher events.Publisher
}

// Close releases the engine runner and the event connection.
func (r *Runtime) Close() error {
	pubErr := r.publisher.Close()
	if err := r.runner.Close(); err != nil {
		return err
	}
	return pubErr
}

// NewRunner returns the engine runner selected by cfg.Runner.
func NewRunner(cfg *config.Config) (engine.Runner, error) {
	switch cfg.Runner {
	case "local", "":
		return engine.NewLocalRunner(), nil
	case "docker":
		return engine.NewDockerRunner(cfg.DockerImage), nil
	default:
		return nil, fmt.Errorf("unknown runner %q", cfg.Runner)
	}
}

// SnapshotConfig extracts the snapshot backend settings from cfg.
func SnapshotConfig(cfg *config.Config) snapshot.Config {
	return snapshot.Config{
		Dir:       cfg.SnapshotDir,
		Bucket:    cfg.SnapshotBucket,
		Prefix:    cfg.SnapshotPrefix,
		Region:    cfg.SnapshotRegion,
		LockTable: cfg.SnapshotLockTable,
		Key:       cfg.SnapshotKey,
	}
}

// FromConfig builds a Runtime wired from cfg and checks the engine once.
// Snapshot export and NATS events are enabled only when configured.
func FromConfig(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	runner, err := NewRunner(cfg)
	if err != nil {
		return nil, err
	}

	pulumi := engine.NewPulumi(runner, engine.Options{
		PulumiBin:  cfg.PulumiBin,
		NPMBin:     cfg.NPMBin,
		StateDir:   cfg.StateDir,
		APIURL:     cfg.PulumiAPI,
		Passphrase: cfg.Passphrase,
	})

	costs := cost.DefaultTable()
	if cfg.CostFile != "" {
		if err := costs.LoadOverrides(cfg.CostFile); err != nil {
			runner.Close()
			return nil, err
		}
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			runner.Close()
			return nil, err
		}
		publisher = nats
		logging.Info("publishing stack events", "url", cfg.NATSURL)
	}

	snapshots, err := snapshot.New(ctx, SnapshotConfig(cfg))
	if err != nil {
		publisher.Close()
		runner.Close()
		return nil, err
	}

	svc := New(Options{
		WorkRoot:  cfg.WorkRoot,
		Generator: &generator.Command{Line: cfg.GeneratorCmd},
		Dynamic:   extract.Dynamic{Previewer: pulumi},
		Deployer:  pulumi,
		Engine:    pulumi,
		Validator: session.NewValidator(cfg.PulumiAPI),
		Costs:     costs,
		Publisher: publisher,
		Snapshots: snapshots,
	})
	svc.EngineAvailable(ctx)
	return &Runtime{Service: svc, runner: runner, publisher: publisher}, nil
}
