package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
)

const defaultTimeout = 30 * time.Second

// Client fetches entries from a materials database REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Rate limiting: max requests per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a data-source client. Returns an error if the API key is
// empty: without credentials no entry pool can be assembled and the whole
// pipeline would abort anyway.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrDataSource)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxPerMin: 20, // conservative rate limit
	}, nil
}

// wireEntry is the API's JSON representation of one record.
type wireEntry struct {
	ID      string  `json:"entry_id"`
	Formula string  `json:"formula"`
	Energy  float64 `json:"energy"`
	RunType string  `json:"run_type"`
}

// wireResponse is the API response body.
type wireResponse struct {
	Entries []wireEntry `json:"entries"`
}

// FetchEntries implements DataSource: GET {base}/entries?chemsys=Ba-O-Zr.
func (c *Client) FetchEntries(ctx context.Context, system []chem.Element) ([]entry.Entry, error) {
	// Rate limiting.
	c.mu.Lock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: rate limit exceeded (%d calls/min)", ErrDataSource, c.maxPerMin)
	}
	c.callCount++
	c.mu.Unlock()

	key := ChemsysKey(system)
	u := fmt.Sprintf("%s/entries?chemsys=%s", c.baseURL, url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDataSource, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataSource, key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrDataSource, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API error %d: %s", ErrDataSource, resp.StatusCode, string(body))
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrDataSource, err)
	}

	out := make([]entry.Entry, 0, len(wire.Entries))
	for _, w := range wire.Entries {
		comp, err := chem.ParseFormula(w.Formula)
		if err != nil {
			slog.Warn("skipping unparseable entry", "entry_id", w.ID, "formula", w.Formula, "error", err)
			continue
		}
		out = append(out, entry.Entry{
			Kind:        entry.Computed,
			Composition: comp,
			EnergyRaw:   w.Energy,
			RunType:     w.RunType,
			SourceID:    w.ID,
		})
	}

	slog.Info("fetched entries", "chemsys", key, "count", humanize.Comma(int64(len(out))))
	return out, nil
}
