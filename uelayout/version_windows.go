//go:build windows

package uelayout

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	modversion                  = syscall.NewLazyDLL("version.dll")
	procGetFileVersionInfoSizeW = modversion.NewProc("GetFileVersionInfoSizeW")
	procGetFileVersionInfoW     = modversion.NewProc("GetFileVersionInfoW")
	procVerQueryValueW          = modversion.NewProc("VerQueryValueW")
)

type vsFixedFileInfo struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

// fileVersion reads the VS_FIXEDFILEINFO of the executable.
func fileVersion(exePath string) (string, error) {
	if exePath == "" {
		return "", fmt.Errorf("executable path is unknown")
	}

	pathPtr, err := syscall.UTF16PtrFromString(exePath)
	if err != nil {
		return "", err
	}

	var dummy uint32
	size, _, _ := procGetFileVersionInfoSizeW.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&dummy)),
	)
	if size == 0 {
		return "", fmt.Errorf("failed to get version info size for %s", exePath)
	}

	buffer := make([]byte, size)
	ret, _, _ := procGetFileVersionInfoW.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		0,
		size,
		uintptr(unsafe.Pointer(&buffer[0])),
	)
	if ret == 0 {
		return "", fmt.Errorf("failed to get file version info for %s", exePath)
	}

	root, err := syscall.UTF16PtrFromString(`\`)
	if err != nil {
		return "", err
	}

	var infoPtr unsafe.Pointer
	var infoLen uint32
	ret, _, _ = procVerQueryValueW.Call(
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(unsafe.Pointer(root)),
		uintptr(unsafe.Pointer(&infoPtr)),
		uintptr(unsafe.Pointer(&infoLen)),
	)
	if ret == 0 || infoPtr == nil || infoLen == 0 {
		return "", fmt.Errorf("failed to query version info for %s", exePath)
	}

	info := (*vsFixedFileInfo)(infoPtr)
	major := info.FileVersionMS >> 16
	minor := info.FileVersionMS & 0xFFFF
	build := info.FileVersionLS >> 16
	revision := info.FileVersionLS & 0xFFFF

	return fmt.Sprintf("%d.%d.%d.%d", major, minor, build, revision), nil
}
