package optimizer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"imgvault/internal/services"
)

// lockAsset takes the advisory lock for id without waiting. The returned
// func releases it.
func (o *Optimizer) lockAsset(id int64) (func(), error) {
	if err := os.MkdirAll(o.lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStore, component, "lock", "create lock directory", err)
	}
	lock := flock.New(filepath.Join(o.lockDir, fmt.Sprintf("asset-%d.lock", id)))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrStore, component, "lock", "acquire asset lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrAssetBusy, component, "lock",
			fmt.Sprintf("asset %d is being processed elsewhere", id), nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
