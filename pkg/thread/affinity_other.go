//go:build !linux

package thread

import (
	"github.com/jzx17/jobpool/pkg/types"
)

const (
	affinitySupported = false
	namingSupported   = false
)

// no portable OS thread id
func currentID() ID {
	return 0
}

func setAffinity(cpu int) error {
	return types.ErrUnsupported
}

func setName(name string) error {
	return types.ErrUnsupported
}

func allowedCPUs() ([]int, error) {
	return nil, types.ErrUnsupported
}

func currentCPU() (int, error) {
	return 0, types.ErrUnsupported
}
