//go:build amd64

package compute

import "golang.org/x/sys/cpu"

// vectorISA reports "avx2+fma" when the CPU has both AVX2 and FMA.
// Plain SSE2 does not qualify; the kernels assume 8-wide fused multiply-add.
func vectorISA() string {
	if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
		return "avx2+fma"
	}

	return ""
}
