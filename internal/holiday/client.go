// Package holiday fetches public holiday lists and keeps them cached in the
// store for the business-day calculation.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL serves national holidays for Brazil, one list per year.
const DefaultBaseURL = "https://brasilapi.com.br/api/feriados/v1"

// Client talks to a BrasilAPI-compatible holiday endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. A zero timeout means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// holidayEntry mirrors one element of GET {base}/{year}.
type holidayEntry struct {
	Date string `json:"date"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Fetch returns the holiday dates ("2006-01-02") of year. Entries with an
// unparsable date are skipped.
func (c *Client) Fetch(ctx context.Context, year int) ([]string, error) {
	url := c.baseURL + "/" + strconv.Itoa(year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting holidays for %d: %w", year, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holidays for %d: unexpected status %d", year, resp.StatusCode)
	}

	var entries []holidayEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding holidays for %d: %w", year, err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			continue
		}
		dates = append(dates, e.Date)
	}
	return dates, nil
}
