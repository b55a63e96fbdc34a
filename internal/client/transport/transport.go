// Package transport implements the sync engine's Backend contract over
// HTTP against the LinkKeeper reference server.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/LinkKeeper/internal/client/syncer"
	"github.com/atinyakov/LinkKeeper/internal/models"
)

// keepaliveTimeout bounds a last-gasp delivery while the page or
// process is being torn down.
const keepaliveTimeout = 2 * time.Second

// MetaStore is the slice of the local store the transport needs to
// version its pushes and record server-assigned metadata.
type MetaStore interface {
	GetLocalSyncMeta() *models.SyncMeta
	SetSyncMeta(meta models.SyncMeta)
	DeviceID() string
}

// Client talks to the reference sync backend. It satisfies
// syncer.Backend.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	meta    MetaStore
	log     *zap.Logger
}

// New creates a transport client. httpClient may be nil; a default with
// a 10 second timeout is used.
func New(httpClient *http.Client, baseURL, token string, meta MetaStore, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		meta:    meta,
		log:     log,
	}
}

type pullResponse struct {
	Data *models.SyncDocument `json:"data"`
}

type pushRequest struct {
	Payload     *models.SyncPayload `json:"payload"`
	BaseVersion int64               `json:"baseVersion"`
	DeviceID    string              `json:"deviceId"`
	Force       bool                `json:"force"`
	Kind        syncer.PushKind     `json:"kind"`
	SkipHistory bool                `json:"skipHistory,omitempty"`
}

type pushResponse struct {
	Accepted bool            `json:"accepted"`
	Meta     models.SyncMeta `json:"meta"`
}

// PullFromCloud fetches the current remote document; nil when the
// server holds no data yet.
func (c *Client) PullFromCloud(ctx context.Context) (*models.SyncDocument, error) {
	var resp pullResponse
	if err := c.post(ctx, c.http, "/api/pull", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	return resp.Data, nil
}

// PushToCloud writes the payload. On acceptance the server-assigned
// metadata is persisted into the local store. A 409 is a rejection,
// not an error: the engine turns it into a conflict.
func (c *Client) PushToCloud(ctx context.Context, payload *models.SyncPayload, force bool, kind syncer.PushKind, opts syncer.PushOptions) (bool, error) {
	var baseVersion int64
	if m := c.meta.GetLocalSyncMeta(); m != nil {
		baseVersion = m.Version
	}

	req := pushRequest{
		Payload:     payload,
		BaseVersion: baseVersion,
		DeviceID:    c.meta.DeviceID(),
		Force:       force,
		Kind:        kind,
		SkipHistory: opts.SkipHistory,
	}

	client := c.http
	if opts.Keepalive {
		// Degraded delivery mode: same wire format, tight budget.
		client = &http.Client{Transport: c.http.Transport, Timeout: keepaliveTimeout}
	}

	var resp pushResponse
	if err := c.post(ctx, client, "/api/push", req, &resp); err != nil {
		if isConflictStatus(err) {
			return false, nil
		}
		return false, fmt.Errorf("push failed: %w", err)
	}
	if !resp.Accepted {
		return false, nil
	}

	c.meta.SetSyncMeta(resp.Meta)
	return true, nil
}

// RefreshSyncAuth re-validates the session token and returns its role.
func (c *Client) RefreshSyncAuth(ctx context.Context) (models.AuthStatus, error) {
	var status models.AuthStatus
	if err := c.post(ctx, c.http, "/api/auth/refresh", struct{}{}, &status); err != nil {
		return models.AuthStatus{}, fmt.Errorf("auth refresh failed: %w", err)
	}
	return status, nil
}

// statusError carries a non-2xx server reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.code, strings.TrimSpace(e.body))
}

func isConflictStatus(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusConflict
}

// post sends a JSON request and decodes a JSON response.
func (c *Client) post(ctx context.Context, client *http.Client, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(data)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}
