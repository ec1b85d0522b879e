package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bringyour/byctl/internal/api/apitest"
	"github.com/bringyour/byctl/internal/session"
)

// harness runs byctl commands against an in-process fake API with config,
// session and cache confined to a temp dir.
type harness struct {
	t           *testing.T
	srv         *apitest.Server
	configPath  string
	sessionPath string
	cachePath   string
	stdin       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("BY_JWT", "")
	t.Setenv("BY_API_URL", "")

	dir := t.TempDir()
	h := &harness{
		t:           t,
		srv:         apitest.New(t),
		configPath:  filepath.Join(dir, "config.toml"),
		sessionPath: filepath.Join(dir, "session.toml"),
		cachePath:   filepath.Join(dir, "cache.db"),
	}
	config := fmt.Sprintf("api_url = %q\npoll_interval = 0.01\nrequest_timeout = 5\ncache_path = %q\nsession_path = %q\n",
		h.srv.URL, h.cachePath, h.sessionPath)
	require.NoError(t, os.WriteFile(h.configPath, []byte(config), 0o600))
	return h
}

func (h *harness) login() {
	h.t.Helper()
	require.NoError(h.t, session.Save(h.sessionPath, session.Session{JWT: apitest.Token, NetworkName: "home"}))
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(h.stdin))
	cmd.SetArgs(append([]string{"--config", h.configPath}, args...))

	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}
