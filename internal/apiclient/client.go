// Package apiclient is a thin HTTP client for the ztnetd API, shared
// by the CLI command groups.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to a running ztnetd server
type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

// New creates a client for the given server. An empty token falls back
// to the stored session from a previous login.
func New(baseURL, token string) *Client {
	if token == "" {
		token = loadSession()
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Get fetches path and decodes the JSON response into out
func (c *Client) Get(path string, out interface{}) error {
	return c.do("GET", path, nil, out)
}

// Post sends body as JSON and decodes the response into out
func (c *Client) Post(path string, body, out interface{}) error {
	return c.do("POST", path, body, out)
}

// Put sends body as JSON and decodes the response into out
func (c *Client) Put(path string, body, out interface{}) error {
	return c.do("PUT", path, body, out)
}

// Delete issues a DELETE and decodes any response into out
func (c *Client) Delete(path string, out interface{}) error {
	return c.do("DELETE", path, nil, out)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("server error: %s", body.Error)
	}
	return fmt.Errorf("server error: %s", resp.Status)
}

func sessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ztnetd", "session")
}

func loadSession() string {
	path := sessionFile()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveSession persists a login token for later CLI invocations
func SaveSession(token string) error {
	path := sessionFile()
	if path == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

// ClearSession removes the stored login token
func ClearSession() error {
	path := sessionFile()
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
