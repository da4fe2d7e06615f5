package protocol

// Delivery is the outcome of handing a command to the relay.
type Delivery int

const (
	// Delivered means the command was queued on a live vehicle link.
	Delivered Delivery = iota
	// Offline means no live link accepted the command.
	Offline
)

func (d Delivery) String() string {
	if d == Delivered {
		return "delivered"
	}
	return "offline"
}
