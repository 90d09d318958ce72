package connection

import "time"

// Tracker is a pure classifier over transport callbacks. It is owned by a
// single driver loop and is not safe for concurrent use; the transport's
// asynchronous callbacks must be serialized before reaching it.
type Tracker struct {
	clock        func() time.Time
	current      Lifecycle
	lastEndpoint string
	connections  uint64
	attempt      int
	events       []Event
}

// NewTracker creates a tracker in the Idle state. A nil clock defaults to
// time.Now.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		clock:   clock,
		current: Lifecycle{State: StateIdle},
	}
}

// Current returns the lifecycle value after the last classified callback.
func (t *Tracker) Current() Lifecycle {
	return t.current
}

// Events returns a copy of the append-only event log.
func (t *Tracker) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// DiscoveryStarted classifies the start of device discovery.
func (t *Tracker) DiscoveryStarted() Lifecycle {
	now := t.clock().UTC()
	t.current = Lifecycle{
		State:     StateDiscovering,
		StartedAt: now,
	}
	t.append(Event{Timestamp: now, Type: EventDiscoveryStarted})
	return t.current
}

// EndpointFound classifies a discovered endpoint. Discovery keeps running;
// only the event log records the find.
func (t *Tracker) EndpointFound(endpointID string) Lifecycle {
	now := t.clock().UTC()
	t.append(Event{Timestamp: now, Type: EventEndpointFound, EndpointID: endpointID})
	return t.current
}

// ConnectStarted classifies an outgoing connection attempt.
func (t *Tracker) ConnectStarted(endpointID string) Lifecycle {
	now := t.clock().UTC()
	t.attempt++
	t.current = Lifecycle{
		State:              StateConnecting,
		EndpointID:         endpointID,
		Attempt:            t.attempt,
		PreviousEndpointID: t.lastEndpoint,
		StartedAt:          now,
	}
	t.append(Event{Timestamp: now, Type: EventConnectAttempt, EndpointID: endpointID, Attempt: t.attempt})
	return t.current
}

// ConnectSucceeded classifies a reported "connected to endpoint". The first
// success gets connection number 1; every later success increments it and
// records the prior endpoint, which is what makes silent reconnections
// detectable.
func (t *Tracker) ConnectSucceeded(endpointID string) Lifecycle {
	now := t.clock().UTC()
	previous := t.lastEndpoint
	t.connections++
	t.attempt = 0
	t.lastEndpoint = endpointID
	t.current = Lifecycle{
		State:              StateConnected,
		EndpointID:         endpointID,
		ConnectionNumber:   t.connections,
		PreviousEndpointID: previous,
		ConnectedAt:        now,
	}

	eventType := EventConnectSucceeded
	if t.current.IsReconnection() {
		eventType = EventReconnectionDetected
	}
	t.append(Event{Timestamp: now, Type: eventType, EndpointID: endpointID, ConnectionNumber: t.connections})
	return t.current
}

// ConnectFailed classifies a failed connection attempt. With a prior
// successful connection the pairing moves to Reconnecting; otherwise it
// falls back to Idle for the driver to restart discovery.
func (t *Tracker) ConnectFailed(endpointID, reason string) Lifecycle {
	now := t.clock().UTC()
	if t.lastEndpoint != "" {
		t.current = Lifecycle{
			State:              StateReconnecting,
			PreviousEndpointID: t.lastEndpoint,
			Attempt:            t.attempt,
			Reason:             reason,
			StartedAt:          now,
		}
	} else {
		t.current = Lifecycle{State: StateIdle}
	}
	t.append(Event{Timestamp: now, Type: EventConnectFailed, EndpointID: endpointID, Attempt: t.attempt, Reason: reason})
	return t.current
}

// Disconnected classifies a reported disconnect. The transition is
// unconditional regardless of the prior state.
func (t *Tracker) Disconnected(endpointID, reason string) Lifecycle {
	now := t.clock().UTC()
	t.current = Lifecycle{
		State:              StateDisconnected,
		EndpointID:         endpointID,
		PreviousEndpointID: t.lastEndpoint,
		Reason:             reason,
	}
	t.append(Event{Timestamp: now, Type: EventDisconnected, EndpointID: endpointID, Reason: reason})
	return t.current
}

func (t *Tracker) append(evt Event) {
	evt.Seq = uint64(len(t.events)) + 1
	t.events = append(t.events, evt)
}
