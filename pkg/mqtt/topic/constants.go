package topic

// MQTT filter wildcards.
const (
	// Wildcard matches exactly one level: roverhub/v1/online/+ matches
	// roverhub/v1/online/rpi-01.
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and must come last.
	MultiWildcard = "#"
)
