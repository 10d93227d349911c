//go:build windows

package main

import (
	"uedump/process"
	"uedump/process_windows"
)

func newPlatformProcess() process.Process {
	return process_windows.New()
}

func listPlatformProcesses() ([]process.ProcessInfo, error) {
	return process_windows.ListProcesses()
}
