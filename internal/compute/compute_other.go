//go:build !amd64 && !arm64

package compute

// vectorISA reports no supported vector ISA on other architectures.
func vectorISA() string { return "" }
