//go:build linux

package thread

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	affinitySupported = true
	namingSupported   = true

	// kernel limit including the trailing NUL
	maxNameLen = 15
)

func currentID() ID {
	return ID(unix.Gettid())
}

// setAffinity binds the calling thread to a single CPU
func setAffinity(cpu int) error {
	var set unix.CPUSet
	if cpu < 0 || cpu >= len(set)*64 {
		return fmt.Errorf("sched_setaffinity: cpu %d out of range", cpu)
	}
	set.Zero()
	set.Set(cpu)

	// pid 0 targets the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

func setName(name string) error {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return fmt.Errorf("prctl(PR_SET_NAME): %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NAME): %w", err)
	}
	return nil
}

func allowedCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("sched_getaffinity: %w", err)
	}
	cpus := make([]int, 0, set.Count())
	for cpu := 0; cpu < len(set)*64; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

func currentCPU() (int, error) {
	var cpu uint32
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("getcpu: %w", errno)
	}
	return int(cpu), nil
}
