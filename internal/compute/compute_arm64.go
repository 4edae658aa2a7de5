//go:build arm64

package compute

import "golang.org/x/sys/cpu"

// vectorISA reports "neon" when Advanced SIMD is available. It is mandatory
// in AArch64 but the kernel can mask it out, so check anyway.
func vectorISA() string {
	if cpu.ARM64.HasASIMD {
		return "neon"
	}

	return ""
}
