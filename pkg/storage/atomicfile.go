// pkg/storage/atomicfile.go
package storage

import (
	"os"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
)

// AtomicWrite replaces path with data, guaranteeing that the file holds
// either its old content or all of data. Missing directories are created.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	_, err := atomicfile.WriteBytes(data, path,
		atomicfile.WithOverwrite(true),
		atomicfile.WithFileMode(perm),
		atomicfile.WithSyncDir(true),
	)
	return err
}
