//go:build linux

package main

import (
	"uedump/process"
	"uedump/process_linux"
)

func newPlatformProcess() process.Process {
	return process_linux.New()
}

func listPlatformProcesses() ([]process.ProcessInfo, error) {
	return process_linux.ListProcesses()
}
