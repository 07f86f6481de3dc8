//go:build darwin

package platform

const hostPlatform = "macos"
