// Package availability maintains an in-memory, always-current projection of
// every parking spot for one connected instance.  The projection is fed by
// the spot.status fanout feed and rebuilt from the database whenever the
// feed (re)connects, so it is eventually consistent but never permanently
// stale.
package availability

import (
    "context"
    "sort"
    "sync"

    "github.com/iliyamo/parking-spot-reservation/internal/model"
    "github.com/iliyamo/parking-spot-reservation/internal/queue"
)

// SpotReader is the slice of the spot registry the projection needs for a
// full resynchronization.
type SpotReader interface {
    ReadAll(ctx context.Context) ([]model.Spot, error)
}

// Sync holds the projected spot states and fans incremental changes out to
// subscribers.  All methods are safe for concurrent use.
type Sync struct {
    reader SpotReader

    mu      sync.RWMutex
    spots   map[string]model.Spot
    subs    map[uint64]chan model.Spot
    nextSub uint64
}

// New returns an empty projection bound to the given reader.  Call Resync
// (directly or through the feed consumer) before serving snapshots.
func New(reader SpotReader) *Sync {
    return &Sync{
        reader: reader,
        spots:  make(map[string]model.Spot),
        subs:   make(map[uint64]chan model.Spot),
    }
}

// Resync replaces the whole projection with the store's current state.
// The feed consumer calls this before every consume loop; after a dropped
// connection the snapshot therefore equals the store's truth before any
// incremental update is applied on top of it.
func (s *Sync) Resync(ctx context.Context) error {
    spots, err := s.reader.ReadAll(ctx)
    if err != nil {
        return err
    }
    s.mu.Lock()
    s.spots = make(map[string]model.Spot, len(spots))
    for _, sp := range spots {
        s.spots[sp.ID] = sp
    }
    s.mu.Unlock()
    return nil
}

// Apply merges one feed event into the projection.  Events carry the
// spot's version counter; an event at or below the projected version is a
// stale redelivery and is dropped, which keeps updates for the same spot
// in commit order even across reconnects.  Fresh events are fanned out to
// all subscribers.
func (s *Sync) Apply(ev queue.SpotChangedEvent) {
    s.mu.Lock()
    cur, known := s.spots[ev.SpotID]
    if known && ev.Version <= cur.Version {
        s.mu.Unlock()
        return
    }
    next := cur
    next.ID = ev.SpotID
    next.Label = ev.Label
    next.Status = ev.Status
    next.Version = ev.Version
    s.spots[ev.SpotID] = next

    // Fan out under the lock: sends are non-blocking and the lock keeps a
    // concurrent unsubscribe from closing a channel mid-send.
    for _, ch := range s.subs {
        // A slow subscriber never blocks Apply: when its buffer is full,
        // a pending notification for the same spot is replaced by the new
        // one, so a burst of updates for one spot can never push out the
        // only notification another spot has pending.  Only when every
        // pending entry is for a distinct spot does the oldest give way.
        select {
        case ch <- next:
        default:
            pending := make([]model.Spot, 0, cap(ch)+1)
            for drained := false; !drained; {
                select {
                case ev := <-ch:
                    if ev.ID != next.ID {
                        pending = append(pending, ev)
                    }
                default:
                    drained = true
                }
            }
            pending = append(pending, next)
            if len(pending) > cap(ch) {
                pending = pending[len(pending)-cap(ch):]
            }
            for _, ev := range pending {
                select {
                case ch <- ev:
                default:
                }
            }
        }
    }
    s.mu.Unlock()
}

// Snapshot returns a label-ordered copy of the projected spots.
func (s *Sync) Snapshot() []model.Spot {
    s.mu.RLock()
    out := make([]model.Spot, 0, len(s.spots))
    for _, sp := range s.spots {
        out = append(out, sp)
    }
    s.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
    return out
}

// Subscribe registers a listener for incremental spot changes.  It returns
// the delivery channel and a cancel function that unregisters the listener
// and closes the channel.
func (s *Sync) Subscribe() (<-chan model.Spot, func()) {
    ch := make(chan model.Spot, 16)
    s.mu.Lock()
    id := s.nextSub
    s.nextSub++
    s.subs[id] = ch
    s.mu.Unlock()

    cancel := func() {
        s.mu.Lock()
        if _, ok := s.subs[id]; ok {
            delete(s.subs, id)
            close(ch)
        }
        s.mu.Unlock()
    }
    return ch, cancel
}
