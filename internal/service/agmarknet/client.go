package agmarknet

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CropCast/internal/domain/models"
	drepo "CropCast/internal/domain/repository"
	xhttp "CropCast/pkg/http"
	applogger "CropCast/pkg/logger"

	"golang.org/x/time/rate"
)

// Config of the open-data mandi price API.
type Config struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	MaxRecords int
	RPS        float64
	Timeout    time.Duration
	// Commodity and State filter fetched records when set.
	Commodity string
	State     string
}

// Client pages through the open-data API and returns raw records.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

var _ drepo.RawSource = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *xhttp.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agmarknet: API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agmarknet: base URL is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 10000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	c := &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithUserAgent("cropcast-collector"),
			xhttp.WithRetry(2, time.Second),
		)
	}
	return c, nil
}

type page struct {
	Total   int                          `json:"total"`
	Count   int                          `json:"count"`
	Records []map[string]json.RawMessage `json:"records"`
}

// Fetch pages until an empty page or MaxRecords. A failure after some pages
// returns the records collected so far together with the error.
func (c *Client) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	var out []models.RawRecord
	fetched := 0
	for offset := 0; offset < c.cfg.MaxRecords; offset += c.cfg.PageSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		var p page
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			URL: c.cfg.BaseURL,
			QueryParams: map[string][]string{
				"api-key": {c.cfg.APIKey},
				"format":  {"json"},
				"offset":  {strconv.Itoa(offset)},
				"limit":   {strconv.Itoa(c.cfg.PageSize)},
			},
		}, &p)
		if err != nil {
			return out, fmt.Errorf("fetch offset %d: %w", offset, err)
		}
		if len(p.Records) == 0 {
			c.logger.Info("no more records", applogger.Int("offset", offset))
			break
		}

		fetched += len(p.Records)
		for _, raw := range p.Records {
			rec := toRecord(raw)
			if c.keep(rec) {
				out = append(out, rec)
			}
		}
		c.logger.Debug("fetched page",
			applogger.Int("offset", offset),
			applogger.Int("records", len(p.Records)),
			applogger.Int("kept", len(out)),
		)
	}
	c.logger.Info("collection finished",
		applogger.Int("fetched", fetched),
		applogger.Int("kept", len(out)),
	)
	return out, nil
}

func (c *Client) keep(rec models.RawRecord) bool {
	if c.cfg.Commodity != "" && !strings.EqualFold(strings.TrimSpace(rec["commodity"]), c.cfg.Commodity) {
		return false
	}
	if c.cfg.State != "" && !strings.EqualFold(strings.TrimSpace(rec["state"]), c.cfg.State) {
		return false
	}
	return true
}

// toRecord stringifies JSON values. Strings are unquoted, null becomes empty
// and numbers keep their literal text.
func toRecord(raw map[string]json.RawMessage) models.RawRecord {
	rec := make(models.RawRecord, len(raw))
	for k, v := range raw {
		s := strings.TrimSpace(string(v))
		switch {
		case s == "null":
			s = ""
		case strings.HasPrefix(s, `"`):
			var str string
			if err := json.Unmarshal(v, &str); err == nil {
				s = str
			}
		}
		rec[k] = s
	}
	return rec
}
