//go:build !linux && !darwin && !windows

package platform

import "runtime"

var hostPlatform = runtime.GOOS
