//go:build linux

package hal

import (
	"os"
	"strconv"
	"strings"
)

const thermalZone = "/sys/class/thermal/thermal_zone0/temp"

// readCPUTemp reads the SoC temperature, reported by the kernel in
// millidegrees Celsius.
func readCPUTemp() (float64, bool) {
	data, err := os.ReadFile(thermalZone)
	if err != nil {
		return 0, false
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return float64(milli) / 1000, true
}
