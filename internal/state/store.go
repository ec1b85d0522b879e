package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/optimistic"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Devices             []api.Device
	Providers           []api.Provider
	HasDevices          bool
	Pending             map[string]bool // client ids with unsettled provide changes
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Provider returns the stats for clientID, if any.
func (s Snapshot) Provider(clientID string) (api.Provider, bool) {
	for _, p := range s.Providers {
		if p.ClientID == clientID {
			return p, true
		}
	}
	return api.Provider{}, false
}

// Store coordinates concurrent updates to the snapshot. Background refreshes
// go through Update; optimistic provide changes go through Swap and Settle.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	inflight map[string]int
}

var _ optimistic.Store[string, api.Device] = (*Store)(nil)

// Update replaces the stored snapshot. When err is non-nil the previous data is
// kept but the error is recorded for visibility. Devices with an unsettled
// change keep their local value so a refresh cannot undo an optimistic write.
func (s *Store) Update(devices []api.Device, providers []api.Provider, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	merged := cloneDevices(devices)
	for i, d := range merged {
		if s.inflight[d.ClientID] == 0 {
			continue
		}
		if local, ok := s.findLocked(d.ClientID); ok {
			merged[i] = local
		}
	}
	s.snapshot.Devices = merged
	s.snapshot.Providers = cloneProviders(providers)
	s.snapshot.HasDevices = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Device returns the current local value for clientID.
func (s *Store) Device(clientID string) (api.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(clientID)
}

// Swap implements optimistic.Store.
func (s *Store) Swap(clientID string, fn func(api.Device) api.Device) (api.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(clientID)
	if i < 0 {
		return api.Device{}, fmt.Errorf("device %s: %w", clientID, optimistic.ErrUnknownTarget)
	}
	prior := s.snapshot.Devices[i]
	s.snapshot.Devices[i] = fn(prior)
	if s.inflight == nil {
		s.inflight = make(map[string]int)
	}
	s.inflight[clientID]++
	return prior, nil
}

// Settle implements optimistic.Store. A device that disappeared from the
// network in the meantime stays gone.
func (s *Store) Settle(clientID string, d api.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(clientID); i >= 0 {
		s.snapshot.Devices[i] = d
	}
	if s.inflight[clientID] <= 1 {
		delete(s.inflight, clientID)
		return
	}
	s.inflight[clientID]--
}

// InFlight returns the number of unsettled changes for clientID.
func (s *Store) InFlight(clientID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight[clientID]
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Devices = cloneDevices(s.snapshot.Devices)
	snap.Providers = cloneProviders(s.snapshot.Providers)
	if len(s.inflight) > 0 {
		snap.Pending = make(map[string]bool, len(s.inflight))
		for id := range s.inflight {
			snap.Pending[id] = true
		}
	}
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) indexLocked(clientID string) int {
	for i, d := range s.snapshot.Devices {
		if d.ClientID == clientID {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(clientID string) (api.Device, bool) {
	if i := s.indexLocked(clientID); i >= 0 {
		return s.snapshot.Devices[i], true
	}
	return api.Device{}, false
}

func cloneDevices(items []api.Device) []api.Device {
	if len(items) == 0 {
		return nil
	}
	dup := make([]api.Device, len(items))
	copy(dup, items)
	return dup
}

func cloneProviders(items []api.Provider) []api.Provider {
	if len(items) == 0 {
		return nil
	}
	dup := make([]api.Provider, len(items))
	copy(dup, items)
	return dup
}
