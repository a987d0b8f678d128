//go:build !gpu

package device

import "fmt"

// ErrNotBuilt indicates the binary was built without accelerator support.
var ErrNotBuilt = fmt.Errorf("accelerator probing requires building with '-tags gpu'")

func acceleratorCount() (int, error) {
	return 0, ErrNotBuilt
}
