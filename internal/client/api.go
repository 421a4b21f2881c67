// Package client talks to the TagLock server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/atinyakov/TagLock/internal/models"
)

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// ScanResult is the outcome of a scan as reported by the server.
type ScanResult struct {
	Outcome     string     `json:"outcome"`
	ProfileID   *uuid.UUID `json:"profile_id,omitempty"`
	ProfileName string     `json:"profile_name,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Class       string     `json:"class,omitempty"`
	Message     string     `json:"message"`
}

// Rejected reports whether the scan changed nothing.
func (r ScanResult) Rejected() bool {
	return r.Outcome == "rejected"
}

// Client calls the server API.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client for baseURL, e.g. https://localhost:8080.
func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Status returns the lock status.
func (c *Client) Status(ctx context.Context) (models.Status, error) {
	var st models.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Profiles lists all profiles.
func (c *Client) Profiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles", nil, &profiles)
	return profiles, err
}

// AddProfile creates a profile.
func (c *Client) AddProfile(ctx context.Context, name string, selection models.Selection) (models.Profile, error) {
	var p models.Profile
	body := map[string]any{"name": name, "selection": selection}
	err := c.do(ctx, http.MethodPost, "/api/profiles", body, &p)
	return p, err
}

// EditProfile renames a profile and replaces its selection.
func (c *Client) EditProfile(ctx context.Context, id uuid.UUID, name string, selection models.Selection) error {
	body := map[string]any{"name": name, "selection": selection}
	return c.do(ctx, http.MethodPut, "/api/profiles/"+id.String(), body, nil)
}

// DeleteProfiles removes profiles. When the locked profile was listed the
// other ids are still removed and a conflict APIError is returned with them.
func (c *Client) DeleteProfiles(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var resp struct {
		Removed []uuid.UUID `json:"removed"`
		Error   string      `json:"error"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/profiles", map[string]any{"ids": ids}, &resp)
	return resp.Removed, err
}

// WriteTag asks the server to write the profile's tag through its reader.
func (c *Client) WriteTag(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/profiles/"+id.String()+"/tag", nil, nil)
}

// ScanTag asks the server to read a tag through its reader.
func (c *Client) ScanTag(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	err := c.do(ctx, http.MethodPost, "/api/scan/tag", nil, &res)
	return res, err
}

// Scan submits raw tag content read elsewhere.
func (c *Client) Scan(ctx context.Context, raw []byte) (ScanResult, error) {
	var res ScanResult
	err := c.do(ctx, http.MethodPost, "/api/scan", map[string][]byte{"payload": raw}, &res)
	return res, err
}

// EmergencyUnlock spends one emergency unlock.
func (c *Client) EmergencyUnlock(ctx context.Context) (models.Status, error) {
	var st models.Status
	err := c.do(ctx, http.MethodPost, "/api/emergency-unlock", nil, &st)
	return st, err
}

// do sends body as JSON and decodes the response into out. Rejected scans
// (422) and filtered deletes (409) carry a JSON body that is decoded too.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
	if out != nil && isJSON && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity && isJSON:
		// a rejected scan is a result, not a failure
		return nil
	default:
		msg := strings.TrimSpace(string(data))
		if isJSON {
			var e struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(data, &e) == nil && e.Error != "" {
				msg = e.Error
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
}
