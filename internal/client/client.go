package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37777"
	httpTimeout      = 5 * time.Minute
)

// Client talks to a running lexisync daemon.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a daemon client. An empty serverURL falls back to
// LEXISYNC_URL, then to http://127.0.0.1:37777.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("LEXISYNC_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		// Syncs merge whole dictionaries; allow them to run.
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the daemon base URL.
func (c *Client) URL() string { return c.serverURL }

// Result is the body of a daemon action route.
type Result struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
	Dict   string `json:"dict"`
	Error  string `json:"error"`
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// ErrUnreachable is returned by actions when the daemon does not answer its
// health check.
var ErrUnreachable = errors.New("daemon not reachable")

// Healthy checks if the daemon is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Sync asks the daemon to synchronize one dictionary, or all of them when
// name is empty.
func (c *Client) Sync(name string) (Result, error) {
	path := "/api/sync"
	if name != "" {
		path = dictPath(name, "sync")
	}
	return c.action(path, nil)
}

// Backup asks the daemon to back up one dictionary.
func (c *Client) Backup(name string) (Result, error) {
	return c.action(dictPath(name, "backup"), nil)
}

// Restore asks the daemon to merge a snapshot file it can read.
func (c *Client) Restore(snapshot string) (Result, error) {
	body, err := json.Marshal(map[string]string{"snapshot": snapshot})
	if err != nil {
		return Result{}, err
	}
	return c.action("/api/restore", body)
}

func dictPath(name, action string) string {
	return "/api/dicts/" + url.PathEscape(name) + "/" + action
}

func (c *Client) action(path string, body []byte) (Result, error) {
	var res Result
	if !c.Healthy() {
		return res, fmt.Errorf("%w at %s", ErrUnreachable, c.serverURL)
	}
	data, err := c.Post(path, body)
	if len(data) > 0 {
		if jerr := json.Unmarshal(data, &res); jerr != nil && err == nil {
			err = fmt.Errorf("decode %s: %w", path, jerr)
		}
	}
	return res, err
}
