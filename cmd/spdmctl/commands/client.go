package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrAdminRequestFailed is returned when the admin API responds with a
// non-2xx status code.
var ErrAdminRequestFailed = errors.New("admin API request failed")

// getJSON issues a GET against the admin API at path and decodes the JSON
// body into v.
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(adminURL(path))
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s returned %d: %s", ErrAdminRequestFailed, path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
