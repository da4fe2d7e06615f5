//go:build !linux

package hal

func readCPUTemp() (float64, bool) {
	return 0, false
}
