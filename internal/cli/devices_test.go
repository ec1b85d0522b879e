package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/dashlog"
	"github.com/bringyour/byctl/internal/output"
)

func TestDevices_Text(t *testing.T) {
	h := newHarness(t)
	h.login()
	laptop := h.srv.NewDevice("laptop", api.ProvideModePublic)
	h.srv.NewDevice("phone", api.ProvideModeFriendsAndFamily)

	out, _, err := h.run("devices")
	require.NoError(t, err)
	assert.Contains(t, out, "CLIENT ID")
	assert.Contains(t, out, laptop.ClientID)
	assert.Contains(t, out, "laptop")
	assert.Contains(t, out, "Friends And Family")
	assert.NotContains(t, out, "Cached")
}

func TestDevices_JSON(t *testing.T) {
	h := newHarness(t)
	h.login()
	laptop := h.srv.NewDevice("laptop", api.ProvideModePublic)
	h.srv.SetProviders(api.Provider{ClientID: laptop.ClientID, Connected: true})

	out, _, err := h.run("--format", "json", "devices")
	require.NoError(t, err)

	var list output.DeviceList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Devices, 1)
	assert.Equal(t, laptop.ClientID, list.Devices[0].ClientID)
	assert.Equal(t, api.ProvideModePublic, list.Devices[0].ProvideMode)
	require.Len(t, list.Providers, 1)
	assert.Nil(t, list.CachedAt)
}

func TestDevices_ProviderFailureStillLists(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.NewDevice("laptop", api.ProvideModePublic)
	h.srv.FailNext("/stats/providers", http.StatusInternalServerError)

	out, stderr, err := h.run("devices")
	require.NoError(t, err)
	assert.Contains(t, out, "laptop")
	assert.Contains(t, stderr, "fetch provider stats")
}

func TestDevices_Offline(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.NewDevice("laptop", api.ProvideModePublic)

	_, _, err := h.run("devices", "--offline")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no cached devices")

	_, _, err = h.run("devices")
	require.NoError(t, err)

	h.srv.NewDevice("tablet", api.ProvideModeNone)
	out, _, err := h.run("devices", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached")
	assert.Contains(t, out, "laptop")
	assert.NotContains(t, out, "tablet", "offline listing must not reach the API")
}

func TestDevices_OfflineEmptyNetwork(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("devices")
	require.NoError(t, err)
	assert.Contains(t, out, "No devices.")

	out, _, err = h.run("devices", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached")
	assert.Contains(t, out, "No devices.")
}

func TestDevices_ServerError(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.FailNext("/network/clients", http.StatusBadGateway)

	_, _, err := h.run("devices")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, api.IsKind(err, api.KindHTTP))
}

func TestProvide_Text(t *testing.T) {
	h := newHarness(t)
	h.login()
	d := h.srv.NewDevice("laptop", api.ProvideModeFriendsAndFamily)

	out, _, err := h.run("provide", d.ClientID, "public")
	require.NoError(t, err)
	assert.Equal(t, "laptop ("+d.ClientID+") provide mode: Public\n", out)

	remote, ok := h.srv.Device(d.ClientID)
	require.True(t, ok)
	assert.Equal(t, api.ProvideModePublic, remote.ProvideMode)
}

func TestProvide_JSONAndCache(t *testing.T) {
	h := newHarness(t)
	h.login()
	d := h.srv.NewDevice("laptop", api.ProvideModePublic)

	out, _, err := h.run("--format", "json", "provide", d.ClientID, "ff")
	require.NoError(t, err)

	var got api.Device
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, api.ProvideModeFriendsAndFamily, got.ProvideMode)

	out, _, err = h.run("--format", "json", "devices", "--offline")
	require.NoError(t, err)
	var list output.DeviceList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Devices, 1)
	assert.Equal(t, api.ProvideModeFriendsAndFamily, list.Devices[0].ProvideMode)
}

func TestProvide_ServerOverride(t *testing.T) {
	h := newHarness(t)
	h.login()
	d := h.srv.NewDevice("laptop", api.ProvideModeNone)
	h.srv.OverrideProvide(d.ClientID, api.ProvideModeNetwork)

	out, stderr, err := h.run("provide", d.ClientID, "public")
	require.NoError(t, err)
	assert.Contains(t, out, "provide mode: Network")
	assert.Contains(t, stderr, "server chose a different provide mode")
}

func TestProvide_Errors(t *testing.T) {
	h := newHarness(t)
	h.login()
	d := h.srv.NewDevice("laptop", api.ProvideModePublic)

	t.Run("invalid mode", func(t *testing.T) {
		_, _, err := h.run("provide", d.ClientID, "sometimes")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid client id", func(t *testing.T) {
		_, _, err := h.run("provide", "not-a-uuid", "public")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unknown device", func(t *testing.T) {
		_, _, err := h.run("provide", "6f1c2b1e-0d3a-4c55-9f0e-3a9d2b7c8e10", "public")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "not on this network")
	})

	t.Run("server failure", func(t *testing.T) {
		h.srv.FailNext("/device/set-provide", http.StatusInternalServerError)
		_, _, err := h.run("provide", d.ClientID, "none")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		remote, _ := h.srv.Device(d.ClientID)
		assert.Equal(t, api.ProvideModePublic, remote.ProvideMode)
	})
}

func TestLogs(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("logs")
	require.NoError(t, err)
	assert.Contains(t, out, "No log entries")

	path := dashlog.Path(h.cachePath)
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o600))

	out, _, err = h.run("logs", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\n", out)

	out, _, err = h.run("--format", "json", "logs", "-n", "0")
	require.NoError(t, err)
	var got struct {
		Path  string   `json:"path"`
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.Path)
	assert.Equal(t, []string{"one", "two", "three"}, got.Lines)
}
