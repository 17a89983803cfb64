// Model-name detection fallback for other platforms.

//go:build !linux && !darwin

package hostcpu

// detectModelName is a no-op; the probe reports an empty model string.
func detectModelName(p *Probe) {}
