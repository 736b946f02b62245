//go:build !linux

package linesort

// fadviseSequential is a no-op on non-Linux platforms.
func fadviseSequential(fd int) {}

// fadviseDontNeed is a no-op on non-Linux platforms.
func fadviseDontNeed(fd int) {}
