package device

import (
	"errors"
	"fmt"
	"strings"
)

// Device identifies where a solver run is placed.
type Device string

const (
	CPU         Device = "cpu"
	Accelerator Device = "accelerator"
)

// ErrUnknownDevice is returned when the name does not match a known device.
var ErrUnknownDevice = errors.New("unknown device")

// Normalize maps arbitrary user input to a canonical device identifier.
func Normalize(name string) Device {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return CPU
	case "accelerator", "gpu", "cuda", "opencl":
		return Accelerator
	default:
		return Device(name)
	}
}

// Parse is Normalize with validation.
func Parse(name string) (Device, error) {
	d := Normalize(name)
	switch d {
	case CPU, Accelerator:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
}

// Supported returns the devices understood by the benchmark.
func Supported() []Device {
	return []Device{CPU, Accelerator}
}

// Available reports whether runs can be placed on d in this process.
func Available(d Device) bool {
	switch d {
	case CPU:
		return true
	case Accelerator:
		n, err := acceleratorCount()
		return err == nil && n > 0
	default:
		return false
	}
}
