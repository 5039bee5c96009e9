// Package session tracks the single peer the unit reports to.
package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryandielhenn/izzy/pkg/heartbeat"
)

type Event uint8

const (
	FirstContact Event = iota + 1
	Refresh
	Conflict
)

func (e Event) String() string {
	switch e {
	case FirstContact:
		return "first_contact"
	case Refresh:
		return "refresh"
	case Conflict:
		return "conflict"
	default:
		return "none"
	}
}

// PeerStatus is a best-effort classification of the bound peer.
type PeerStatus uint8

const (
	Unbound PeerStatus = iota
	Connected
	Stale
)

func (s PeerStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case Stale:
		return "stale"
	default:
		return "unbound"
	}
}

// Peer is a copy of the bound peer record.
type Peer struct {
	ID          uuid.UUID
	Addr        net.Addr
	LastContact time.Time
	Status      PeerStatus
}

// Tracker holds at most one bound peer. Once bound, the peer id only changes
// through Reset.
type Tracker struct {
	mu      sync.RWMutex
	bound   bool
	peer    Peer
	timeout time.Duration
}

// NewTracker returns an unbound tracker. A peer whose last contact is older
// than timeout classifies as Stale; timeout <= 0 disables that.
func NewTracker(timeout time.Duration) *Tracker {
	return &Tracker{timeout: timeout}
}

// BindOrUpdate records an accepted Hello from sender. A sender other than the
// bound peer is rejected with heartbeat.ErrPeerConflict and leaves the record
// untouched.
func (t *Tracker) BindOrUpdate(sender uuid.UUID, addr net.Addr, now time.Time) (Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.bound {
		t.bound = true
		t.peer = Peer{ID: sender, Addr: addr, LastContact: now, Status: Connected}
		return FirstContact, nil
	}
	if t.peer.ID != sender {
		return Conflict, fmt.Errorf("%w: bound to %s, hello from %s", heartbeat.ErrPeerConflict, t.peer.ID, sender)
	}
	t.peer.Addr = addr
	t.peer.LastContact = now
	t.peer.Status = Connected
	return Refresh, nil
}

// Peer returns the bound peer, classified against now.
func (t *Tracker) Peer(now time.Time) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.bound {
		return Peer{}, false
	}
	p := t.peer
	p.Status = t.classify(now)
	return p, true
}

// Classify reports Unbound, Connected or Stale for the current record.
func (t *Tracker) Classify(now time.Time) PeerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.classify(now)
}

func (t *Tracker) classify(now time.Time) PeerStatus {
	if !t.bound {
		return Unbound
	}
	if t.timeout > 0 && now.Sub(t.peer.LastContact) > t.timeout {
		return Stale
	}
	return Connected
}

// Reset unbinds the current peer so the next Hello starts a new session.
// It reports whether a peer was bound.
func (t *Tracker) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.bound
	t.bound = false
	t.peer = Peer{}
	return was
}
