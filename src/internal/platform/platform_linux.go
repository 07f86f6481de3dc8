//go:build linux

package platform

const hostPlatform = "linux"
