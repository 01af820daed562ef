// Package remote fetches a catalog snapshot from the hydrodata web service.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// ModelPath is the endpoint serving the catalog snapshot.
const ModelPath = "/api/data-catalog-model"

// Client implements catalog.Fetcher over HTTP.
type Client struct {
	URL  string
	HTTP *http.Client
	// Attempts is the total number of requests made before giving up.
	Attempts int
	// RetryInterval is the first wait between attempts; it grows exponentially.
	RetryInterval time.Duration
	Logger        logrus.FieldLogger
}

type snapshot struct {
	Tables map[string]struct {
		Columns []string            `json:"columns"`
		Rows    [][]json.RawMessage `json:"rows"`
	} `json:"tables"`
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s: %s", e.URL, e.Status, http.StatusText(e.Status), e.Body)
}

// Fetch downloads the snapshot and converts it to catalog tables.
func (c *Client) Fetch(ctx context.Context) (*catalog.Model, error) {
	url := strings.TrimSuffix(c.URL, "/") + ModelPath
	var snap snapshot
	err := backoff.RetryNotify(
		func() error {
			var err error
			snap, err = c.get(ctx, url)
			return err
		},
		c.backOff(ctx),
		func(err error, d time.Duration) {
			c.log().WithError(err).WithField("retry_in", d).Warn("catalog snapshot request failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog snapshot: %w", err)
	}

	m := catalog.NewModel()
	names := make([]string, 0, len(snap.Tables))
	for name := range snap.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := snap.Tables[name]
		records := make([][]string, len(t.Rows))
		for i, row := range t.Rows {
			records[i] = make([]string, len(row))
			for j, cell := range row {
				records[i][j] = cellText(cell)
			}
		}
		table, err := catalog.TableFromRecords(name, t.Columns, records)
		if err != nil {
			return nil, fmt.Errorf("remote table %s: %w", name, err)
		}
		m.AddTable(table)
	}
	return m, nil
}

func (c *Client) get(ctx context.Context, url string) (snapshot, error) {
	var snap snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snap, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := &StatusError{URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return snap, backoff.Permanent(err)
		}
		return snap, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, backoff.Permanent(fmt.Errorf("decoding %s: %w", url, err))
	}
	return snap, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		b.InitialInterval = c.RetryInterval
	}
	retries := 0
	if c.Attempts > 1 {
		retries = c.Attempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (c *Client) log() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// cellText turns a JSON cell into the text form used by the CSV tables.
func cellText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "null" || s == "":
		return ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return s
}
