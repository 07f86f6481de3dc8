//go:build windows

package platform

const hostPlatform = "windows"
