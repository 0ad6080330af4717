package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/lexisync/internal/client"
)

// run executes the root command against a config rooted in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	conf := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(conf); err != nil {
		body := "user_id: device-a\n" +
			"paths:\n" +
			"  user_data_dir: " + filepath.Join(dir, "data") + "\n" +
			"  sync_dir: " + filepath.Join(dir, "sync") + "\n" +
			"logging:\n  level: error\n"
		if err := os.WriteFile(conf, []byte(body), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", conf}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "in.txt")
	os.WriteFile(text, []byte("mountain\tmo untain\t2\nvalley\tval ley\t1\n"), 0644)

	out, err := run(t, dir, "import", "luna", text)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "imported 2 entries") {
		t.Errorf("import output = %q", out)
	}

	out, err = run(t, dir, "list")
	if err != nil || strings.TrimSpace(out) != "luna" {
		t.Errorf("list = %q, %v", out, err)
	}

	out, err = run(t, dir, "info", "luna")
	if err != nil || !strings.Contains(out, "entries:  2 (0 deleted)") {
		t.Errorf("info = %q, %v", out, err)
	}

	exported := filepath.Join(dir, "out.txt")
	if out, err := run(t, dir, "export", "luna", exported); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	data, _ := os.ReadFile(exported)
	if !strings.Contains(string(data), "mountain\tmo untain\t2\n") {
		t.Errorf("export file = %q", data)
	}

	if out, err := run(t, dir, "sync"); err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "sync", "device-a", "luna.userdb.snapshot")); err != nil {
		t.Errorf("sync did not publish: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "backup", "ghost"); err == nil {
		t.Error("backup of a missing dictionary succeeded")
	}
	if _, err := run(t, dir, "info"); err == nil {
		t.Error("info without a name succeeded")
	}
}

func TestRemoteSync(t *testing.T) {
	t.Cleanup(func() { syncRemote = false })
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			return
		}
		json.NewEncoder(w).Encode(client.Result{OK: true, Action: "sync", Dict: "luna"})
	}))
	defer ts.Close()
	t.Setenv("LEXISYNC_URL", ts.URL)

	out, err := run(t, t.TempDir(), "sync", "--remote", "luna")
	if err != nil {
		t.Fatalf("sync --remote: %v", err)
	}
	if !strings.Contains(out, "daemon: sync ok") {
		t.Errorf("sync --remote output = %q", out)
	}

	ts.Close()
	if _, err := run(t, t.TempDir(), "sync", "--remote", "luna"); !errors.Is(err, client.ErrUnreachable) {
		t.Errorf("sync --remote against a stopped daemon err = %v, want ErrUnreachable", err)
	}
}
