// Package sysinfo gathers a one-time snapshot of the host for the
// knowledge base. Every probe is optional; a failed probe leaves its
// field empty rather than failing the snapshot.
package sysinfo

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/shellmind/shellmind/pkg/logger"
)

type Info struct {
	OS              string   `json:"os"`
	Kernel          string   `json:"kernel,omitempty"`
	Packages        []string `json:"packages"`
	RunningServices []string `json:"running_services"`
	Disk            string   `json:"disk,omitempty"`
	Memory          string   `json:"memory,omitempty"`
}

// Gatherer produces the system snapshot. Tests substitute a fake.
type Gatherer func() Info

const probeTimeout = 10 * time.Second

// Gather runs the host probes. Called at most once per knowledge-base
// lifetime.
func Gather() Info {
	info := Info{
		OS:              runtime.GOOS + "/" + runtime.GOARCH,
		Packages:        []string{},
		RunningServices: []string{},
	}

	if out := probe("uname", "-sr"); out != "" {
		info.Kernel = out
	}
	if out := probe("sh", "-c", ". /etc/os-release 2>/dev/null && echo $PRETTY_NAME"); out != "" {
		info.OS = out
	}
	if out := probe("sh", "-c", "dpkg-query -W -f '${Package}\\n' 2>/dev/null | head -n 50"); out != "" {
		info.Packages = splitLines(out)
	} else if out := probe("sh", "-c", "rpm -qa --qf '%{NAME}\\n' 2>/dev/null | head -n 50"); out != "" {
		info.Packages = splitLines(out)
	}
	if out := probe("sh", "-c", "systemctl list-units --type=service --state=running --no-legend --plain 2>/dev/null | awk '{print $1}' | head -n 30"); out != "" {
		info.RunningServices = splitLines(out)
	}
	if out := probe("sh", "-c", "df -h / | tail -n 1"); out != "" {
		info.Disk = out
	}
	if out := probe("sh", "-c", "free -h | grep -i mem"); out != "" {
		info.Memory = out
	}

	logger.InfoCF("sysinfo", "system snapshot gathered", map[string]any{
		"packages": len(info.Packages),
		"services": len(info.RunningServices),
	})
	return info
}

func probe(name string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
