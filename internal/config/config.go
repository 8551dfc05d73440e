package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
)

// Config holds process-wide settings. Every field can be set from a PKL file
// and overridden by its environment variable.
type Config struct {
	WorkRoot    string `pkl:"workRoot"`    // INFRAVIZ_WORK_ROOT (default "/tmp")
	StateDir    string `pkl:"stateDir"`    // INFRAVIZ_STATE_DIR (default "/tmp")
	PulumiAPI   string `pkl:"pulumiApi"`   // INFRAVIZ_PULUMI_API (default "https://api.pulumi.com")
	PulumiBin   string `pkl:"pulumiBin"`   // INFRAVIZ_PULUMI_BIN (default "pulumi")
	NPMBin      string `pkl:"npmBin"`      // INFRAVIZ_NPM_BIN (default "npm")
	Runner      string `pkl:"runner"`      // INFRAVIZ_RUNNER ("local" or "docker")
	DockerImage string `pkl:"dockerImage"` // INFRAVIZ_DOCKER_IMAGE
	Passphrase  string `pkl:"passphrase"`  // PULUMI_CONFIG_PASSPHRASE (default "infraviz")
	LogLevel    string `pkl:"logLevel"`    // INFRAVIZ_LOG_LEVEL (default "info")

	GeneratorCmd string `pkl:"generatorCmd"` // INFRAVIZ_GENERATOR_CMD (optional)
	CostFile     string `pkl:"costFile"`     // INFRAVIZ_COST_FILE (optional TOML overrides)
	NATSURL      string `pkl:"natsUrl"`      // INFRAVIZ_NATS_URL (optional, empty = no events)

	// Snapshot export settings
	SnapshotDir       string `pkl:"snapshotDir"`       // INFRAVIZ_SNAPSHOT_DIR (enables local export)
	SnapshotBucket    string `pkl:"snapshotBucket"`    // INFRAVIZ_SNAPSHOT_BUCKET (enables S3 export)
	SnapshotPrefix    string `pkl:"snapshotPrefix"`    // INFRAVIZ_SNAPSHOT_PREFIX (default "infraviz/stacks")
	SnapshotRegion    string `pkl:"snapshotRegion"`    // INFRAVIZ_SNAPSHOT_REGION (default "us-east-1")
	SnapshotLockTable string `pkl:"snapshotLockTable"` // INFRAVIZ_SNAPSHOT_LOCK_TABLE (optional DynamoDB table)
	SnapshotKey       string `pkl:"snapshotKey"`       // INFRAVIZ_SNAPSHOT_KEY (optional encryption key)
}

// envKeys maps struct fields to their environment variables.
var envKeys = map[string]string{
	"WorkRoot":          "INFRAVIZ_WORK_ROOT",
	"StateDir":          "INFRAVIZ_STATE_DIR",
	"PulumiAPI":         "INFRAVIZ_PULUMI_API",
	"PulumiBin":         "INFRAVIZ_PULUMI_BIN",
	"NPMBin":            "INFRAVIZ_NPM_BIN",
	"Runner":            "INFRAVIZ_RUNNER",
	"DockerImage":       "INFRAVIZ_DOCKER_IMAGE",
	"Passphrase":        "PULUMI_CONFIG_PASSPHRASE",
	"LogLevel":          "INFRAVIZ_LOG_LEVEL",
	"GeneratorCmd":      "INFRAVIZ_GENERATOR_CMD",
	"CostFile":          "INFRAVIZ_COST_FILE",
	"NATSURL":           "INFRAVIZ_NATS_URL",
	"SnapshotDir":       "INFRAVIZ_SNAPSHOT_DIR",
	"SnapshotBucket":    "INFRAVIZ_SNAPSHOT_BUCKET",
	"SnapshotPrefix":    "INFRAVIZ_SNAPSHOT_PREFIX",
	"SnapshotRegion":    "INFRAVIZ_SNAPSHOT_REGION",
	"SnapshotLockTable": "INFRAVIZ_SNAPSHOT_LOCK_TABLE",
	"SnapshotKey":       "INFRAVIZ_SNAPSHOT_KEY",
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		WorkRoot:       "/tmp",
		StateDir:       "/tmp",
		PulumiAPI:      "https://api.pulumi.com",
		PulumiBin:      "pulumi",
		NPMBin:         "npm",
		Runner:         "local",
		DockerImage:    "pulumi/pulumi-nodejs:latest",
		Passphrase:     "infraviz",
		LogLevel:       "info",
		SnapshotPrefix: "infraviz/stacks",
		SnapshotRegion: "us-east-1",
	}
}

// Load builds the configuration: defaults, then the optional PKL file at path,
// then environment variables.
func Load(ctx context.Context, path string) (*Config, error) {
	c := Defaults()

	if path != "" {
		fileCfg, err := LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		c.merge(fileCfg)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Runner {
	case "local", "docker":
	default:
		return fmt.Errorf("INFRAVIZ_RUNNER: unknown runner %q (want local or docker)", c.Runner)
	}
	if c.SnapshotDir != "" && c.SnapshotBucket != "" {
		return fmt.Errorf("INFRAVIZ_SNAPSHOT_DIR and INFRAVIZ_SNAPSHOT_BUCKET are mutually exclusive")
	}
	return nil
}

// merge copies every non-empty string field of other onto c.
func (c *Config) merge(other *Config) {
	dst := reflect.ValueOf(c).Elem()
	src := reflect.ValueOf(other).Elem()
	for i := 0; i < src.NumField(); i++ {
		if v := src.Field(i).String(); v != "" {
			dst.Field(i).SetString(v)
		}
	}
}

func (c *Config) applyEnv() {
	v := reflect.ValueOf(c).Elem()
	for field, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			v.FieldByName(field).SetString(val)
		}
	}
}
