// README: WebSocket push: connection registry keyed by user.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"rideconnect/internal/types"
)

// WSDispatcher pushes events over live WebSocket connections. A user with no
// open connection is skipped silently; offers also reach drivers through the
// polling endpoint, so a missed push is not a lost offer.
type WSDispatcher struct {
	mu      sync.RWMutex
	drivers map[types.ID]*websocket.Conn
	riders  map[types.ID]*websocket.Conn
}

func NewWSDispatcher() *WSDispatcher {
	return &WSDispatcher{
		drivers: make(map[types.ID]*websocket.Conn),
		riders:  make(map[types.ID]*websocket.Conn),
	}
}

// AttachDriver registers a driver connection, replacing any previous one.
func (d *WSDispatcher) AttachDriver(id types.ID, conn *websocket.Conn) {
	d.attach(d.drivers, id, conn)
}

// AttachRider registers a rider connection, replacing any previous one.
func (d *WSDispatcher) AttachRider(id types.ID, conn *websocket.Conn) {
	d.attach(d.riders, id, conn)
}

func (d *WSDispatcher) attach(m map[types.ID]*websocket.Conn, id types.ID, conn *websocket.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := m[id]; ok {
		old.Close()
	}
	m[id] = conn
}

// DetachDriver drops a driver connection if it is still the registered one.
func (d *WSDispatcher) DetachDriver(id types.ID, conn *websocket.Conn) {
	d.detach(d.drivers, id, conn)
}

// DetachRider drops a rider connection if it is still the registered one.
func (d *WSDispatcher) DetachRider(id types.ID, conn *websocket.Conn) {
	d.detach(d.riders, id, conn)
}

func (d *WSDispatcher) detach(m map[types.ID]*websocket.Conn, id types.ID, conn *websocket.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m[id] == conn {
		delete(m, id)
	}
}

func (d *WSDispatcher) NotifyDriver(_ context.Context, driverID types.ID, ev Event) error {
	return d.send(d.drivers, driverID, ev)
}

func (d *WSDispatcher) NotifyRider(_ context.Context, riderID types.ID, ev Event) error {
	return d.send(d.riders, riderID, ev)
}

func (d *WSDispatcher) send(m map[types.ID]*websocket.Conn, id types.ID, ev Event) error {
	d.mu.RLock()
	conn, ok := m[id]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("ws push to %s: %w", id, err)
	}
	return nil
}
