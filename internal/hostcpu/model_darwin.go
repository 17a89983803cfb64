// Darwin (macOS) model detection via sysctl. Apple Silicon and x86 Macs use
// the same key.

//go:build darwin

package hostcpu

import (
	"os/exec"
	"strings"
)

// detectModelName reads machdep.cpu.brand_string, "" on any failure.
func detectModelName(p *Probe) {
	out, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output()
	if err != nil {
		return
	}
	p.ModelName = strings.TrimSpace(string(out))
}
