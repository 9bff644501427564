package engine

import (
	"sync"

	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/storage"
)

const (
	recentCapacity          = 1000
	defaultObservationLimit = 50
)

// ring keeps the most recent observations in memory.
type ring struct {
	mutex sync.RWMutex
	buf   []firmware.Observation
	next  int
	full  bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]firmware.Observation, capacity)}
}

func (r *ring) add(obs firmware.Observation) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.buf[r.next] = obs
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// GetObservations applies the time, type and identity filters of query,
// newest first. Offset is honoured only together with Limit.
func (r *ring) GetObservations(query storage.ObservationQuery) ([]firmware.Observation, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}

	var out []firmware.Observation
	skipped := 0
	for i := 1; i <= n; i++ {
		obs := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if !matches(obs, query) {
			continue
		}
		if query.Limit > 0 && skipped < query.Offset {
			skipped++
			continue
		}
		out = append(out, obs)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

func matches(obs firmware.Observation, q storage.ObservationQuery) bool {
	if q.Since != nil && obs.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && obs.Timestamp.After(*q.Until) {
		return false
	}
	if q.Type != "" && obs.Type != q.Type {
		return false
	}
	if q.TransmitterIdentity != nil && obs.TransmitterIdentity != *q.TransmitterIdentity {
		return false
	}
	if q.ShortNetworkID != nil && obs.ShortNetworkID != *q.ShortNetworkID {
		return false
	}
	return true
}
