package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sandialabs/firewheel-core/pkg/objectstore"
	"github.com/sandialabs/firewheel-core/pkg/schedule"
)

func decodeSchedule(data []byte) (*schedule.Schedule, error) {
	return schedule.Unmarshal(data)
}

// objectStoreFetcher satisfies executor.ResourceFetcher by reading a
// named blob out of the shared object store.
type objectStoreFetcher struct {
	store *objectstore.Store
}

func (f objectStoreFetcher) FetchVMResource(ctx context.Context, name string) ([]byte, error) {
	_, rc, err := f.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("fetching vm resource %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// transferSink satisfies executor.TransferSink by writing pulled bytes
// under <destDir>/<vm_name>/<in_vm_path> (spec.md §4.3).
type transferSink struct{}

func (transferSink) WriteTransfer(ctx context.Context, vmName, destDir, inVMPath string, data []byte) error {
	target := filepath.Join(destDir, vmName, inVMPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}
