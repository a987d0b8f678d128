package device

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Info describes one device as seen by this process.
type Info struct {
	Device    Device   `json:"device"`
	Available bool     `json:"available"`
	Count     int      `json:"count"`
	Features  []string `json:"features,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// CPUFeatures lists the vector extensions of the host CPU that matter for
// dense linear algebra.
func CPUFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			has  bool
		}{
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		} {
			if f.has {
				features = append(features, f.name)
			}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "asimd")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	return features
}

// Inventory reports every supported device.
func Inventory() []Info {
	infos := []Info{{
		Device:    CPU,
		Available: true,
		Count:     runtime.NumCPU(),
		Features:  CPUFeatures(),
		Detail:    runtime.GOOS + "/" + runtime.GOARCH,
	}}

	acc := Info{Device: Accelerator}
	n, err := acceleratorCount()
	if err != nil {
		acc.Detail = err.Error()
	} else {
		acc.Count = n
		acc.Available = n > 0
	}
	return append(infos, acc)
}
