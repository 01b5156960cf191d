// Package session implements Cape's session table: a mutex-guarded map
// from session id to last-activity timestamp. Session ids are security
// tokens, so they are drawn with a cryptographically secure RNG. Expiry
// is evaluated on access rather than by background timers; nothing needs
// to fire when a session merely goes idle.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/marmos91/cape/internal/capeerr"
)

// Table is a concurrency-safe map of live session ids to their last
// activity time.
type Table struct {
	mu   sync.Mutex
	byID map[uint32]time.Time
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{byID: make(map[uint32]time.Time)}
}

// Issue draws a random nonzero session id not already present in the
// table, records its last-activity time as now, and returns it. Id 0 is
// reserved to mean "no session yet" and is never issued.
func (t *Table) Issue() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		id, err := randomNonzeroUint32()
		if err != nil {
			return 0, capeerr.Wrap(capeerr.IOError, err)
		}
		if _, taken := t.byID[id]; taken {
			continue
		}
		t.byID[id] = time.Now()
		return id, nil
	}
}

// ValidateAndRefresh checks that id is a live, unexpired session under
// timeout, and if so refreshes its last-activity time to now. A zero id,
// an unknown id, or one idle longer than timeout all yield SessionError.
func (t *Table) ValidateAndRefresh(id uint32, timeout time.Duration) error {
	if id == 0 {
		return capeerr.New(capeerr.SessionError)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.byID[id]
	if !ok {
		return capeerr.New(capeerr.SessionError)
	}
	if time.Since(last) > timeout {
		delete(t.byID, id)
		return capeerr.New(capeerr.SessionError)
	}
	t.byID[id] = time.Now()
	return nil
}

// Revoke removes a session id, if present. Revoking an unknown or zero id
// is a no-op.
func (t *Table) Revoke(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Len reports the number of currently live sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

func randomNonzeroUint32() (uint32, error) {
	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		id := binary.LittleEndian.Uint32(buf[:])
		if id != 0 {
			return id, nil
		}
	}
}
