//go:build !windows

package uelayout

// fileVersion has no portable source outside Windows; callers fall back
// to signature discovery and a degraded profile.
func fileVersion(exePath string) (string, error) {
	return "", &UnsupportedVersion{Version: exePath}
}
