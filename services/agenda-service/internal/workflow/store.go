package workflow

import (
	"errors"
	"sync"
	"time"
)

// ErrUnknownSubmission means the token does not match a pending
// submission: never issued, expired, or already finished.
var ErrUnknownSubmission = errors.New("unknown submission")

const defaultTTL = 15 * time.Minute

type entry struct {
	sub     *Submission
	expires time.Time
}

// Store keeps pending submissions by token so a conflict prompt can be
// resumed by a later request. Apply serializes all transitions for a
// submission; the in-flight flag inside the machine covers the window
// where a remote call runs outside the lock.
type Store struct {
	mu   sync.Mutex
	subs map[string]*entry
	ttl  time.Duration
	now  func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		subs: make(map[string]*entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (st *Store) Add(sub *Submission) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked()
	st.subs[sub.ID] = &entry{sub: sub, expires: st.now().Add(st.ttl)}
}

// Apply runs one transition under the store lock and returns the
// effects plus a snapshot of the submission after the event. Terminal
// submissions are dropped from the store.
func (st *Store) Apply(id string, ev Event) ([]Effect, Submission, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	ent, ok := st.subs[id]
	if !ok || st.now().After(ent.expires) {
		delete(st.subs, id)
		return nil, Submission{}, ErrUnknownSubmission
	}

	effects, err := ent.sub.Apply(ev)
	if err != nil {
		return nil, *ent.sub, err
	}
	if ent.sub.State.Terminal() {
		delete(st.subs, id)
	} else {
		ent.expires = st.now().Add(st.ttl)
	}
	return effects, *ent.sub, nil
}

func (st *Store) Get(id string) (Submission, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	ent, ok := st.subs[id]
	if !ok || st.now().After(ent.expires) {
		delete(st.subs, id)
		return Submission{}, false
	}
	return *ent.sub, true
}

func (st *Store) sweepLocked() {
	if len(st.subs) < 1024 {
		return
	}
	now := st.now()
	for id, ent := range st.subs {
		if now.After(ent.expires) {
			delete(st.subs, id)
		}
	}
}
