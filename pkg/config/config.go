// Package config holds the small, constructor-injected configuration
// structs used by the FIREWHEEL core components. There is no global
// singleton: callers build a Config and pass it to the component that
// needs it, the same way cuemby-warren's Manager/Worker take a *Config.
package config

import (
	"os"
	"strconv"
	"time"
)

// Coordination holds the settings needed to dial or serve the
// Coordination Service gRPC endpoint.
type Coordination struct {
	Hostname string
	Port     int
	DB       string
}

// DefaultCoordination returns the Coordination config with FIREWHEEL's
// conventional defaults, overridable by environment variables so the
// daemons can be pointed at a non-default deployment without a config
// file (full YAML-based config editing is out of scope; see spec.md).
func DefaultCoordination() Coordination {
	return Coordination{
		Hostname: getEnv("FIREWHEEL_GRPC_HOSTNAME", "127.0.0.1"),
		Port:     getEnvInt("FIREWHEEL_GRPC_PORT", 50051),
		DB:       getEnv("FIREWHEEL_GRPC_DB", "prod"),
	}
}

// Retry holds the shared retry-discipline parameters referenced by
// spec.md §5: a base delay, a backoff factor, and a bounded attempt
// count.
type Retry struct {
	Base        time.Duration
	Factor      float64
	MaxAttempts int
}

// DefaultRetry returns the retry defaults used by RPCs and object-store
// reads.
func DefaultRetry() Retry {
	return Retry{
		Base:        200 * time.Millisecond,
		Factor:      2.0,
		MaxAttempts: 8,
	}
}

// ExperimentTiming controls the cluster-wide start-time barrier.
type ExperimentTiming struct {
	// StartBufferSec is added to "now" when a start time is first
	// published, giving distributed agents slack to converge on
	// "running" together. spec.md's Open Questions flag this value as
	// ambiguously a hard or soft bound; this implementation takes the
	// stronger "at least" reading (see DESIGN.md).
	StartBufferSec int
}

// DefaultExperimentTiming returns the default timing buffer.
func DefaultExperimentTiming() ExperimentTiming {
	return ExperimentTiming{
		StartBufferSec: getEnvInt("FIREWHEEL_EXPERIMENT_START_BUFFER_SEC", 10),
	}
}

// ObjectStore controls where the content-addressed blob store keeps its
// data on a given cluster node.
type ObjectStore struct {
	RootDir string
}

// DefaultObjectStore returns the object store root, defaulting to a
// directory under the OS temp dir so a fresh checkout runs without any
// setup.
func DefaultObjectStore() ObjectStore {
	return ObjectStore{
		RootDir: getEnv("FIREWHEEL_OBJECTSTORE_ROOT", os.TempDir()+"/firewheel/objectstore"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
