package paths

// Topic segments shared by the hub and the rover agent.
// Every topic is {root}/{segment}/{deviceID}.

// Downstream: hub -> vehicle.
const (
	// Command carries one plain-text drive or stream directive,
	// e.g. "forward" or "start_stream|abc123".
	Command = "command"
)

// Upstream: vehicle -> hub.
const (
	// Online carries the retained presence flag. The agent's will message
	// publishes {"online": false} here when it drops off.
	Online = "online"

	// Telemetry carries {"type":"telemetry","battery":..,"rssi":..,"cpu_temp":..}.
	Telemetry = "telemetry"
)
