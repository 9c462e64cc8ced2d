// Package events provides an event system for fault injection and
// supervision notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"chaos-target/internal/state"
)

// EventType represents the type of event
type EventType string

const (
	// EventFaultInjected is emitted when the coordinator writes a fault
	EventFaultInjected EventType = "fault_injected"
	// EventFaultCleared is emitted when an active fault is cleared back to healthy
	EventFaultCleared EventType = "fault_cleared"
	// EventStateWriteFailed is emitted when the coordinator fails to persist state
	EventStateWriteFailed EventType = "state_write_failed"
	// EventTargetExited is emitted by the supervisor when the target process exits
	EventTargetExited EventType = "target_exited"
	// EventTargetRestarted is emitted by the supervisor after restarting the target
	EventTargetRestarted EventType = "target_restarted"
)

// Event represents a fault injection or supervision event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Scenario   string     `json:"scenario,omitempty"`
	Mode       state.Mode `json:"mode,omitempty"`
	DelaySec   float64    `json:"delay_sec,omitempty"`
	ClearedOf  state.Mode `json:"cleared_of,omitempty"`
	ExitCode   int        `json:"exit_code,omitempty"`
	Restarts   int        `json:"restarts,omitempty"`
	Error      string     `json:"error,omitempty"`
	InjectedBy string     `json:"injected_by,omitempty"`
}

func newEvent(t EventType, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewFaultInjectedEvent creates an event for a freshly written fault
func NewFaultInjectedEvent(scenario string, st state.FailureState) Event {
	return newEvent(EventFaultInjected, EventData{
		Scenario:   scenario,
		Mode:       st.Mode,
		DelaySec:   st.Delay,
		InjectedBy: st.InjectedBy,
	})
}

// NewFaultClearedEvent creates an event for a fault cleared back to healthy
func NewFaultClearedEvent(previous state.Mode, by string) Event {
	return newEvent(EventFaultCleared, EventData{
		ClearedOf:  previous,
		InjectedBy: by,
	})
}

// NewStateWriteFailedEvent creates an event for a failed state write
func NewStateWriteFailedEvent(scenario string, err error) Event {
	return newEvent(EventStateWriteFailed, EventData{
		Scenario: scenario,
		Error:    err.Error(),
	})
}

// NewTargetExitedEvent creates an event for a target process exit
func NewTargetExitedEvent(exitCode int) Event {
	return newEvent(EventTargetExited, EventData{
		ExitCode: exitCode,
	})
}

// NewTargetRestartedEvent creates an event for a target restart
func NewTargetRestartedEvent(restarts int) Event {
	return newEvent(EventTargetRestarted, EventData{
		Restarts: restarts,
	})
}
