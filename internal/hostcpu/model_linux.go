//go:build linux

package hostcpu

import (
	"bufio"
	"os"
	"strings"
)

// detectModelName reads the CPU model string from /proc/cpuinfo.
func detectModelName(p *Probe) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "model name" {
			p.ModelName = strings.TrimSpace(val)
			return
		}
	}
}
