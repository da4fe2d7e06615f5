package roveragent

import (
	"os"
	"strings"

	"github.com/autopeer-io/roverhub/pkg/log"
)

const deviceIDEnv = "ROVERHUB_DEVICE_ID"

// DiscoverDeviceID resolves the id this vehicle registered under. An explicit
// id wins, then the environment, then the provisioning file. Empty when none
// is set.
func DiscoverDeviceID(explicit, file string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}

	if id := strings.TrimSpace(os.Getenv(deviceIDEnv)); id != "" {
		log.Info("DeviceID detected from env", "id", id)
		return id
	}

	if file == "" {
		return ""
	}
	if content, err := os.ReadFile(file); err == nil {
		if id := strings.TrimSpace(string(content)); id != "" {
			log.Info("DeviceID detected from file", "id", id, "file", file)
			return id
		}
	}

	return ""
}
