package client

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewURL(t *testing.T) {
	t.Setenv("LEXISYNC_URL", "")
	if got := New("").URL(); got != defaultServerURL {
		t.Errorf("URL = %q, want default", got)
	}
	t.Setenv("LEXISYNC_URL", "http://example:1")
	if got := New("").URL(); got != "http://example:1" {
		t.Errorf("URL = %q, want env value", got)
	}
	if got := New("http://explicit:2").URL(); got != "http://explicit:2" {
		t.Errorf("URL = %q, want explicit value", got)
	}
}

func TestActions(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			return
		}
		gotPath = r.URL.EscapedPath()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if r.URL.Path == "/api/dicts/ghost/backup" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(Result{OK: false, Action: "backup", Dict: "ghost", Error: "backup failed"})
			return
		}
		json.NewEncoder(w).Encode(Result{OK: true, Action: "sync"})
	}))
	defer ts.Close()
	c := New(ts.URL)

	if res, err := c.Sync(""); err != nil || !res.OK || gotPath != "/api/sync" {
		t.Errorf("Sync all = %+v, %v (path %s)", res, err, gotPath)
	}
	if _, err := c.Sync("luna"); err != nil || gotPath != "/api/dicts/luna/sync" {
		t.Errorf("Sync(luna) err = %v, path %s", err, gotPath)
	}
	if _, err := c.Restore("/tmp/luna.userdb.snapshot"); err != nil || gotBody != `{"snapshot":"/tmp/luna.userdb.snapshot"}` {
		t.Errorf("Restore err = %v, body %s", err, gotBody)
	}

	if _, err := c.Sync("my dict/x"); err != nil || gotPath != "/api/dicts/my%20dict%2Fx/sync" {
		t.Errorf("Sync(escaped) err = %v, path %s", err, gotPath)
	}

	res, err := c.Backup("ghost")
	if err == nil {
		t.Error("Backup of failing dict returned no error")
	}
	if res.OK || res.Error != "backup failed" {
		t.Errorf("failure result = %+v", res)
	}
}

func TestHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	if !New(ts.URL).Healthy() {
		t.Error("Healthy = false for a running server")
	}
	ts.Close()
	if New(ts.URL).Healthy() {
		t.Error("Healthy = true after shutdown")
	}
}

func TestActionsUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := New(ts.URL).Sync("luna")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Sync against a stopped daemon err = %v, want ErrUnreachable", err)
	}
}
