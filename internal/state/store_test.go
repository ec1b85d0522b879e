package state

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/optimistic"
)

func devices() []api.Device {
	return []api.Device{
		{ClientID: "a", Description: "laptop", ProvideMode: api.ProvideModeFriendsAndFamily},
		{ClientID: "b", Description: "phone", ProvideMode: api.ProvideModePublic},
	}
}

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	before := time.Now()
	s.Update(devices(), []api.Provider{{ClientID: "b", Connected: true}}, nil)

	snap := s.Snapshot()
	if !snap.HasDevices || len(snap.Devices) != 2 || snap.Devices[0].ClientID != "a" {
		t.Fatalf("snapshot devices = %#v, want 2 devices", snap.Devices)
	}
	if p, ok := snap.Provider("b"); !ok || !p.Connected {
		t.Fatalf("Provider(b) = %#v, %v", p, ok)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Devices[0].Description = "changed"
	snap2 := s.Snapshot()
	if snap2.Devices[0].Description != "laptop" {
		t.Fatalf("Snapshot should clone devices; got %q", snap2.Devices[0].Description)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.Update(devices(), nil, nil)
	prev := s.Snapshot()

	origErr := errors.New("boom")
	s.Update(nil, nil, origErr)

	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Devices, prev.Devices) {
		t.Fatalf("devices changed on error: got %#v want %#v", snap.Devices, prev.Devices)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	for i := 1; i <= 3; i++ {
		s.Update(nil, nil, errors.New("fail"))
		snap := s.Snapshot()
		if snap.ConsecutiveFailures != i {
			t.Fatalf("ConsecutiveFailures = %d, want %d", snap.ConsecutiveFailures, i)
		}
		if snap.IsOffline() != (i >= 2) {
			t.Fatalf("IsOffline() = %v with %d failures", snap.IsOffline(), i)
		}
	}

	s.Update(devices(), nil, nil)
	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("success should reset failures, got %d", snap.ConsecutiveFailures)
	}
}

func TestStore_SwapAndSettle(t *testing.T) {
	var s Store
	s.Update(devices(), nil, nil)

	prior, err := s.Swap("a", func(d api.Device) api.Device {
		d.ProvideMode = api.ProvideModePublic
		return d
	})
	if err != nil {
		t.Fatalf("Swap returned error: %v", err)
	}
	if prior.ProvideMode != api.ProvideModeFriendsAndFamily {
		t.Fatalf("prior mode = %v", prior.ProvideMode)
	}
	snap := s.Snapshot()
	if !snap.Pending["a"] || snap.Pending["b"] {
		t.Fatalf("Pending = %#v, want only a", snap.Pending)
	}

	s.Settle("a", prior)
	got, _ := s.Device("a")
	if got.ProvideMode != api.ProvideModeFriendsAndFamily {
		t.Fatalf("mode after settle = %v", got.ProvideMode)
	}
	if s.InFlight("a") != 0 || len(s.Snapshot().Pending) != 0 {
		t.Fatalf("in-flight not cleared")
	}

	if _, err := s.Swap("missing", func(d api.Device) api.Device { return d }); !errors.Is(err, optimistic.ErrUnknownTarget) {
		t.Fatalf("Swap(missing) err = %v", err)
	}
}

func TestStore_RefreshDoesNotOverwriteInFlightDevice(t *testing.T) {
	var s Store
	s.Update(devices(), nil, nil)

	if _, err := s.Swap("a", func(d api.Device) api.Device {
		d.ProvideMode = api.ProvideModePublic
		return d
	}); err != nil {
		t.Fatalf("Swap returned error: %v", err)
	}

	// A refresh carrying the old server value arrives mid-flight.
	refreshed := devices()
	refreshed[1].Description = "renamed phone"
	s.Update(refreshed, nil, nil)

	a, _ := s.Device("a")
	if a.ProvideMode != api.ProvideModePublic {
		t.Fatalf("in-flight device overwritten: mode = %v", a.ProvideMode)
	}
	b, _ := s.Device("b")
	if b.Description != "renamed phone" {
		t.Fatalf("settled device not refreshed: %q", b.Description)
	}
}

func TestStore_SettleAfterDeviceRemoved(t *testing.T) {
	var s Store
	s.Update(devices(), nil, nil)

	prior, _ := s.Swap("a", func(d api.Device) api.Device { return d })
	s.Update(devices()[1:], nil, nil)
	s.Settle("a", prior)

	if _, ok := s.Device("a"); ok {
		t.Fatalf("removed device came back after settle")
	}
	if s.InFlight("a") != 0 {
		t.Fatalf("in-flight count leaked")
	}
}

func TestStore_WorksWithMutator(t *testing.T) {
	var s Store
	s.Update(devices(), nil, nil)
	m := optimistic.New[string, api.Device](&s)

	_, err := m.Apply(context.Background(), optimistic.Change[string, api.Device]{
		Target: "b",
		Propose: func(d api.Device) api.Device {
			d.ProvideMode = d.ProvideMode.Toggled()
			return d
		},
		Remote: func(context.Context) (api.Device, error) {
			return api.Device{}, errors.New("offline")
		},
	})
	var rb *optimistic.RollbackError
	if !errors.As(err, &rb) {
		t.Fatalf("err = %v, want rollback", err)
	}
	b, _ := s.Device("b")
	if b.ProvideMode != api.ProvideModePublic {
		t.Fatalf("rollback did not restore mode: %v", b.ProvideMode)
	}
}
