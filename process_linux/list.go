//go:build linux

package process_linux

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"uedump/process"
)

// ListProcesses enumerates running processes from /proc, sorted by name.
func ListProcesses() ([]process.ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	selfPID := os.Getpid()
	var out []process.ProcessInfo

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == selfPID {
			continue
		}

		comm, _ := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		name := strings.TrimSpace(string(comm))
		exe, _ := os.Readlink(filepath.Join("/proc", e.Name(), "exe"))
		if name == "" && exe != "" {
			name = filepath.Base(exe)
		}
		if name == "" {
			continue
		}

		out = append(out, process.ProcessInfo{
			PID:  process.ProcessID(pid),
			Name: name,
			Exe:  exe,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
