// Package registryclient is the HTTP client nf/enb and nf/mmwave use
// to register with, heartbeat to, and discover peers through
// nf/x2registry. Grounded on the teacher's nf/amf/internal/client
// NRFClient/AUSFClient: a thin baseURL+http.Client wrapper redefining
// its own wire structs rather than importing the server's internal
// package (the same internal-visibility boundary the teacher's copies
// work around).
package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CellProfile is the wire shape of nf/x2registry's CellProfile.
type CellProfile struct {
	CellID         uint16   `json:"cellId"`
	Role           string   `json:"role"`
	X2Address      string   `json:"x2Address"`
	SBIAddress     string   `json:"sbiAddress"`
	NeighborIDs    []uint16 `json:"neighborIds"`
	HeartBeatTimer int      `json:"heartBeatTimer,omitempty"`
}

// Client talks to one x2registry instance and caches the last
// discovery result so it can serve x2.CellEndpoint.Resolve without a
// network round trip on every X2 send.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[uint16]CellProfile

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		cache:    make(map[uint16]CellProfile),
		stopChan: make(chan struct{}),
	}
}

// Register registers profile with the registry.
func (c *Client) Register(ctx context.Context, profile CellProfile) error {
	url := fmt.Sprintf("%s/x2registry/v1/cells/%d", c.baseURL, profile.CellID)

	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal cell profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("registered with x2registry", zap.Uint16("cell_id", profile.CellID))
	return nil
}

// Deregister removes the cell's registration.
func (c *Client) Deregister(ctx context.Context, cellID uint16) error {
	url := fmt.Sprintf("%s/x2registry/v1/cells/%d", c.baseURL, cellID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("deregistered from x2registry", zap.Uint16("cell_id", cellID))
	return nil
}

// Heartbeat sends a keep-alive for cellID.
func (c *Client) Heartbeat(ctx context.Context, cellID uint16) error {
	url := fmt.Sprintf("%s/x2registry/v1/cells/%d/heartbeat", c.baseURL, cellID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Discover fetches every cell of the given role ("" for all roles)
// directly from the registry, bypassing the cache.
func (c *Client) Discover(ctx context.Context, role string) ([]CellProfile, error) {
	url := fmt.Sprintf("%s/x2registry/v1/discover", c.baseURL)
	if role != "" {
		url += "?role=" + role
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Cells []CellProfile `json:"cells"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}
	return parsed.Cells, nil
}

// Resolve implements x2.CellEndpoint against the locally cached
// discovery result, refreshed by RunRefreshLoop.
func (c *Client) Resolve(cellID uint16) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	profile, ok := c.cache[cellID]
	if !ok {
		return "", false
	}
	return profile.X2Address, true
}

// RunRefreshLoop periodically re-discovers every cell and refreshes
// the resolution cache until Stop is called. Grounded on the teacher's
// repository cleanup-ticker goroutine shape.
func (c *Client) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.refreshOnce(ctx)
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Client) refreshOnce(ctx context.Context) {
	profiles, err := c.Discover(ctx, "")
	if err != nil {
		c.logger.Warn("x2registry discovery refresh failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	for _, p := range profiles {
		c.cache[p.CellID] = p
	}
	c.mu.Unlock()
}

// Stop ends the refresh loop.
func (c *Client) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}
