package integration

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func waitPort(t *testing.T, hostPort string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", hostPort, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("port %s not ready within %v (last err: %v)", hostPort, timeout, lastErr)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

type apiClient struct {
	http  *http.Client
	base  string
	authz string
}

func (c *apiClient) do(t *testing.T, method, path, contentType string, body []byte) (int, []byte, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request %s %s: %v", method, path, err)
	}
	if c.authz != "" {
		req.Header.Set("Authorization", c.authz)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, resp.Header
}

// call sends v as JSON and decodes the data member of the answer into out.
func (c *apiClient) call(t *testing.T, method, path string, v, out any) int {
	t.Helper()
	var body []byte
	if v != nil {
		body = mustJSON(t, v)
	}
	status, b, _ := c.do(t, method, path, "application/json", body)
	if out != nil && status < 300 && len(b) > 0 {
		if err := decodeData(b, out); err != nil {
			t.Fatalf("decode %s %s: %v\n%s", method, path, err, b)
		}
	}
	return status
}

type apiError struct {
	Error struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Message  string `json:"message"`
	} `json:"error"`
}

func errorID(t *testing.T, b []byte) string {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("decode error body: %v\n%s", err, b)
	}
	return e.Error.ID
}

// Light-weight ICS checks on unfolded lines (RFC 5545)
func icsLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	var unfolded []string
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		for i+1 < len(lines) && (strings.HasPrefix(lines[i+1], " ") || strings.HasPrefix(lines[i+1], "\t")) {
			l += strings.TrimLeft(lines[i+1], " \t")
			i++
		}
		unfolded = append(unfolded, l)
	}
	return unfolded
}

func hasPrefixLine(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func decodeData(b []byte, out any) error {
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
