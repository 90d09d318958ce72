// Package memory provides an in-process endpoint pair for tests and the
// simulator. Beyond plain delivery it can inject the failure modes the sync
// core exists to survive: dropped payloads, reported disconnects, and
// silent re-pairing under fresh endpoint ids.
package memory

import (
	"sync"

	"github.com/nearplay/duelsync/internal/transport"
)

type delivery struct {
	kind       deliveryKind
	endpointID string
	reason     string
	payload    []byte
}

type deliveryKind int

const (
	deliverConnected deliveryKind = iota
	deliverDisconnected
	deliverBytes
)

// Endpoint is one side of an in-process link. It implements
// transport.Channel. Callbacks are dispatched from a single goroutine per
// endpoint, so each side observes its events in order.
type Endpoint struct {
	mu       sync.Mutex
	remoteID string
	peer     *Endpoint
	handler  transport.Handler
	queue    chan delivery
	closed   bool
	dropNext int
	done     chan struct{}
}

// Link owns an endpoint pair and drives its lifecycle. Tests use it to
// script connects, drops, and silent re-pairs.
type Link struct {
	a *Endpoint
	b *Endpoint
}

// NewLink creates an unconnected link. Side A addresses its peer as
// remoteA; side B addresses its peer as remoteB.
func NewLink(remoteA, remoteB string) *Link {
	a := newEndpoint(remoteA)
	b := newEndpoint(remoteB)
	a.peer = b
	b.peer = a
	return &Link{a: a, b: b}
}

func newEndpoint(remoteID string) *Endpoint {
	e := &Endpoint{
		remoteID: remoteID,
		queue:    make(chan delivery, 256),
		done:     make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// A returns side A of the link.
func (l *Link) A() *Endpoint { return l.a }

// B returns side B of the link.
func (l *Link) B() *Endpoint { return l.b }

// Connect reports the pairing as established to both sides.
func (l *Link) Connect() {
	l.a.enqueue(delivery{kind: deliverConnected, endpointID: l.a.remoteID})
	l.b.enqueue(delivery{kind: deliverConnected, endpointID: l.b.remoteID})
}

// Drop reports a disconnect with the given reason to both sides.
func (l *Link) Drop(reason string) {
	l.a.enqueue(delivery{kind: deliverDisconnected, endpointID: l.a.remoteID, reason: reason})
	l.b.enqueue(delivery{kind: deliverDisconnected, endpointID: l.b.remoteID, reason: reason})
}

// SilentRepair re-establishes the pairing under fresh endpoint ids without
// ever reporting a disconnect, which is how short-range transports surface
// a silent reconnection.
func (l *Link) SilentRepair(newRemoteA, newRemoteB string) {
	l.a.rename(newRemoteA)
	l.b.rename(newRemoteB)
	l.a.enqueue(delivery{kind: deliverConnected, endpointID: newRemoteA})
	l.b.enqueue(delivery{kind: deliverConnected, endpointID: newRemoteB})
}

// Close shuts both endpoints down.
func (l *Link) Close() {
	_ = l.a.Close()
	_ = l.b.Close()
}

// SetHandler attaches the callback receiver. It must be set before the
// link connects.
func (e *Endpoint) SetHandler(h transport.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// DropNext silently discards the next n inbound payloads on this endpoint.
func (e *Endpoint) DropNext(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropNext = n
}

// RemoteID returns the endpoint id this side currently addresses.
func (e *Endpoint) RemoteID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteID
}

// Send delivers a payload to the peer. The endpoint id must name the
// current remote; anything else reports a send failure, mirroring how a
// real transport refuses frames for stale endpoints.
func (e *Endpoint) Send(endpointID string, payload []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return transport.ErrClosed
	}
	if endpointID != e.remoteID {
		e.mu.Unlock()
		return transport.ErrSendFailed
	}
	peer := e.peer
	e.mu.Unlock()

	return peer.receive(payload)
}

// Close stops callback delivery for this endpoint.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)
	return nil
}

func (e *Endpoint) rename(remoteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remoteID = remoteID
}

func (e *Endpoint) receive(payload []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return transport.ErrSendFailed
	}
	if e.dropNext > 0 {
		e.dropNext--
		e.mu.Unlock()
		return nil
	}
	remoteID := e.remoteID
	e.mu.Unlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)
	e.enqueue(delivery{kind: deliverBytes, endpointID: remoteID, payload: buf})
	return nil
}

func (e *Endpoint) enqueue(d delivery) {
	select {
	case e.queue <- d:
	case <-e.done:
	}
}

func (e *Endpoint) dispatch() {
	for {
		select {
		case d := <-e.queue:
			e.mu.Lock()
			handler := e.handler
			e.mu.Unlock()
			if handler == nil {
				continue
			}
			switch d.kind {
			case deliverConnected:
				handler.OnConnected(d.endpointID)
			case deliverDisconnected:
				handler.OnDisconnected(d.endpointID, d.reason)
			case deliverBytes:
				handler.OnBytesReceived(d.endpointID, d.payload)
			}
		case <-e.done:
			return
		}
	}
}
