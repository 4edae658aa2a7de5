// Package compute reports the vector instruction set available to the math
// kernels and enforces the trainer's accelerator requirement.
package compute

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrNoAccelerator is returned when the host CPU exposes no supported
// vector instruction set.
var ErrNoAccelerator = errors.New("no vector instruction set available")

// Capability describes the detected vector ISA.
type Capability struct {
	// Name is the human-readable ISA name, e.g. "avx2+fma" or "neon".
	// Empty when no supported ISA is present.
	Name string
}

// Accelerated reports whether a supported vector ISA was detected.
func (c Capability) Accelerated() bool { return c.Name != "" }

// Detect returns the vector capability of the host CPU.
// Detection is per-architecture; unsupported architectures report none.
func Detect() Capability {
	return Capability{Name: vectorISA()}
}

// Require returns an error unless a supported vector ISA is present.
// Training on a plain scalar CPU is rejected outright rather than allowed
// to run slow.
func Require() error {
	c := Detect()
	if !c.Accelerated() {
		return fmt.Errorf("%w on %s/%s", ErrNoAccelerator, runtime.GOOS, runtime.GOARCH)
	}

	return nil
}
