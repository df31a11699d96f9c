// Package watch implements the Bubble Tea view of one watched task: a
// simulated progress bar over the live log.
package watch

import "buildwatch/internal/domain"

// EventBusMsg wraps a domain.Event from the EventBus subscription.
type EventBusMsg struct {
	Event domain.Event
}

// actionResultMsg reports the end of a launch, attach or restart.
type actionResultMsg struct {
	err error
}
