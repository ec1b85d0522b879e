package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/api/apitest"
	"github.com/bringyour/byctl/internal/session"
)

func TestLogin_WithCodeSavesSession(t *testing.T) {
	h := newHarness(t)
	h.srv.AcceptAuthCode("AUTH-123")

	out, _, err := h.run("login", "--code", "AUTH-123")
	require.NoError(t, err)
	assert.Equal(t, "Logged in.\n", out)

	sess, err := session.Load(h.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, apitest.Token, sess.JWT)
}

func TestLogin_WithPassword(t *testing.T) {
	h := newHarness(t)
	h.srv.AcceptPassword("me@example.com", "hunter2")
	h.stdin = "hunter2\n"

	out, _, err := h.run("--format", "json", "login", "--user", "me@example.com", "--password-stdin")
	require.NoError(t, err)

	var msg struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &msg))
	assert.Equal(t, "Logged in to testnet.", msg.Message)

	sess, err := session.Load(h.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, "testnet", sess.NetworkName)
	assert.Equal(t, "me@example.com", sess.UserAuth)
}

func TestLogin_VerificationRequired(t *testing.T) {
	h := newHarness(t)
	h.srv.AcceptPassword("new@example.com", "")
	h.stdin = "whatever"

	_, _, err := h.run("login", "--user", "new@example.com", "--password-stdin")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "verified")

	sess, _ := session.Load(h.sessionPath)
	assert.False(t, sess.LoggedIn())
}

func TestLogin_Rejected(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("login", "--code", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, api.IsKind(err, api.KindRemote))
	assert.Contains(t, err.Error(), "Invalid auth code.")
}

func TestLogin_UsageErrors(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("login")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = h.run("login", "--user", "me@example.com")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--password-stdin")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.NewDevice("laptop", api.ProvideModePublic)
	_, _, err := h.run("devices")
	require.NoError(t, err)

	out, _, err := h.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out.\n", out)

	sess, _ := session.Load(h.sessionPath)
	assert.False(t, sess.LoggedIn())

	_, _, err = h.run("devices", "--offline")
	require.Error(t, err, "logout must drop cached devices")

	_, _, err = h.run("devices")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not logged in")
}

func TestEnvTokenOverridesSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, session.Save(h.sessionPath, session.Session{JWT: "stale"}))
	h.srv.NewDevice("laptop", api.ProvideModePublic)

	_, _, err := h.run("devices")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "a rejected token is an auth error")

	t.Setenv("BY_JWT", apitest.Token)
	out, _, err := h.run("devices")
	require.NoError(t, err)
	assert.Contains(t, out, "laptop")
}
