//go:build gpu

package device

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#include <CL/cl.h>
*/
import "C"

import "fmt"

// acceleratorCount counts GPU and accelerator class OpenCL devices across all platforms.
func acceleratorCount() (int, error) {
	var count C.cl_uint
	if status := C.clGetPlatformIDs(0, nil, &count); status != C.CL_SUCCESS {
		return 0, fmt.Errorf("clGetPlatformIDs: status %d", int(status))
	}
	if count == 0 {
		return 0, nil
	}

	platforms := make([]C.cl_platform_id, int(count))
	if status := C.clGetPlatformIDs(count, &platforms[0], nil); status != C.CL_SUCCESS {
		return 0, fmt.Errorf("clGetPlatformIDs: status %d", int(status))
	}

	total := 0
	for _, p := range platforms {
		var n C.cl_uint
		status := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_GPU|C.CL_DEVICE_TYPE_ACCELERATOR, 0, nil, &n)
		if status == C.CL_DEVICE_NOT_FOUND {
			continue
		}
		if status != C.CL_SUCCESS {
			return total, fmt.Errorf("clGetDeviceIDs: status %d", int(status))
		}
		total += int(n)
	}
	return total, nil
}
