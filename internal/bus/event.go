package bus

import "time"

// Event is a domain event published on the bus. Kind is a dotted name such
// as "message.sent"; subscribers filter on its prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
