package blob

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig selects and configures a blob backend from the environment.
type EnvConfig struct {
	Driver string `env:"MINDSIM_BLOB_DRIVER" envDefault:"fs"`
	FSRoot string `env:"MINDSIM_BLOB_FS_ROOT" envDefault:"./blobdata"`

	S3Bucket          string `env:"MINDSIM_BLOB_S3_BUCKET"`
	S3Region          string `env:"MINDSIM_BLOB_S3_REGION"`
	S3Endpoint        string `env:"MINDSIM_BLOB_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"MINDSIM_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"MINDSIM_BLOB_S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"MINDSIM_BLOB_S3_SESSION_TOKEN"`
	S3PathStyle       bool   `env:"MINDSIM_BLOB_S3_PATH_STYLE"`
}

// Open selects a Store implementation using environment variables.
func Open(ctx context.Context) (Store, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse blob config: %w", err)
	}
	return OpenWith(ctx, cfg)
}

// OpenWith constructs a Store from an explicit configuration.
func OpenWith(ctx context.Context, cfg EnvConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("MINDSIM_BLOB_S3_BUCKET required for s3 driver")
		}
		return NewS3(ctx, S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			SessionToken:    cfg.S3SessionToken,
			PathStyle:       cfg.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
