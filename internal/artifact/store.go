// Package artifact holds generated report documents between worker completion
// and client download. The backend is picked explicitly at startup; there is
// no environment-sniffing fallback inside the implementations.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"visit-export-service/internal/config"
)

// ErrNotFound is returned when a reference is unknown or the artifact was
// evicted.
var ErrNotFound = errors.New("artifact not found")

// Store persists and retrieves report artifacts keyed by an opaque reference.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	Get(ctx context.Context, ref string) (data []byte, contentType string, err error)
}

// FromConfig builds the configured backend.
func FromConfig(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.ArtifactBackend {
	case "memory", "":
		return NewMemory(cfg.ArtifactTTL), nil
	case "local":
		return NewLocal(cfg.ArtifactDir), nil
	case "s3":
		if cfg.ArtifactS3Bucket == "" {
			return nil, errors.New("ARTIFACT_BACKEND=s3 requires ARTIFACT_S3_BUCKET")
		}
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.ArtifactBackend)
	}
}
