package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"PstrykSentinel/internal/model"
)

// DefaultBaseURL is the public Pstryk integrations API.
const DefaultBaseURL = "https://api.pstryk.pl/integrations"

const maxBodyBytes = 4 << 20

// Token check outcomes, as reported by ValidateToken.
const (
	ReasonInvalidAuth     = "invalid_auth"
	ReasonCannotConnect   = "cannot_connect"
	ReasonTimeout         = "timeout_error"
	ReasonInvalidResponse = "invalid_response"
	ReasonUnknown         = "unknown"
)

// PstrykFetcher implements Fetcher against the Pstryk REST API.
type PstrykFetcher struct {
	BaseURL   string
	Token     string
	UserAgent string
	Location  *time.Location
	Client    *http.Client
	logger    *zap.Logger
}

// NewPstrykFetcher creates a fetcher with optional proxy support. The client
// has no timeout of its own; every call is bounded by its context.
func NewPstrykFetcher(baseURL, token, proxyURL, userAgent string, loc *time.Location, logger *zap.Logger) *PstrykFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			logger.Warn("ignoring invalid proxy url", zap.String("proxy", proxyURL), zap.Error(err))
		}
	}
	return &PstrykFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		UserAgent: userAgent,
		Location:  loc,
		Client:    &http.Client{Transport: transport},
		logger:    logger,
	}
}

func (f *PstrykFetcher) Name() string { return "pstryk" }

// Endpoint builds the request URL for one direction and calendar day.
func (f *PstrykFetcher) Endpoint(dir model.Direction, date model.Date) (string, error) {
	start, err := date.Start(f.Location)
	if err != nil {
		return "", err
	}
	end, err := date.Next().Start(f.Location)
	if err != nil {
		return "", err
	}
	path := "pricing/"
	if dir == model.DirectionSell {
		path = "prosumer-pricing/"
	}
	q := url.Values{}
	q.Set("resolution", "hour")
	q.Set("window_start", start.UTC().Format(time.RFC3339))
	q.Set("window_end", end.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s/%s?%s", f.BaseURL, path, q.Encode()), nil
}

// FetchDay downloads and normalises the series for dir on date. An empty
// body list is a valid, empty series.
func (f *PstrykFetcher) FetchDay(ctx context.Context, dir model.Direction, date model.Date) (model.DaySeries, error) {
	endpoint, err := f.Endpoint(dir, date)
	if err != nil {
		return model.DaySeries{}, err
	}
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return model.DaySeries{}, err
	}
	entries, err := decodeEntries(body)
	if err != nil {
		return model.DaySeries{}, &MalformedResponseError{Endpoint: endpoint, Err: err}
	}

	points := make([]model.PricePoint, 0, len(entries))
	for i, e := range entries {
		p, err := e.point()
		if err != nil {
			return model.DaySeries{}, &MalformedResponseError{Endpoint: endpoint, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		points = append(points, p)
	}

	series, discarded := model.NewDaySeries(date, f.Location, points)
	if discarded > 0 {
		f.logger.Debug("discarded price entries outside requested day",
			zap.String("direction", string(dir)),
			zap.String("date", string(date)),
			zap.Int("discarded", discarded))
	}
	return series, nil
}

// ValidateToken issues a request for today's buy window and returns one of
// the Reason constants, or "" when the token works.
func (f *PstrykFetcher) ValidateToken(ctx context.Context, now time.Time) string {
	_, err := f.FetchDay(ctx, model.DirectionBuy, model.DateOf(now.In(f.Location)))
	return FailureReason(err)
}

// FailureReason maps a fetch error onto a token check reason.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	var (
		ae *AuthError
		ne *NetworkError
		me *MalformedResponseError
	)
	switch {
	case errors.As(err, &ae):
		return ReasonInvalidAuth
	case errors.As(err, &ne) && ne.Timeout:
		return ReasonTimeout
	case errors.As(err, &ne):
		return ReasonCannotConnect
	case errors.As(err, &me):
		return ReasonInvalidResponse
	default:
		return ReasonUnknown
	}
}

func (f *PstrykFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)
	req.Header.Set("Accept", "application/json")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: snippet(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &NetworkError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d, body: %s", resp.StatusCode, snippet(body)),
		}
	}
	if readErr != nil {
		return nil, &NetworkError{Endpoint: endpoint, Timeout: isTimeout(ctx, readErr), Err: readErr}
	}
	return body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// priceEntry accepts both the bare list shape {time, price} and the frame
// shape {start, price|price_gross}.
type priceEntry struct {
	Time       string              `json:"time"`
	Start      string              `json:"start"`
	Price      decimal.NullDecimal `json:"price"`
	PriceGross decimal.NullDecimal `json:"price_gross"`
}

func decodeEntries(body []byte) ([]priceEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	switch trimmed[0] {
	case '[':
		var entries []priceEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode price list: %w", err)
		}
		return entries, nil
	case '{':
		var wrapped struct {
			Frames *[]priceEntry `json:"frames"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode price frames: %w", err)
		}
		if wrapped.Frames == nil {
			return nil, errors.New("response object has no frames field")
		}
		return *wrapped.Frames, nil
	default:
		return nil, fmt.Errorf("unexpected body starting with %q", trimmed[0])
	}
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func (e priceEntry) point() (model.PricePoint, error) {
	raw := e.Time
	if raw == "" {
		raw = e.Start
	}
	if raw == "" {
		return model.PricePoint{}, errors.New("missing timestamp")
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return model.PricePoint{}, err
	}
	price := e.Price
	if !price.Valid {
		price = e.PriceGross
	}
	if !price.Valid {
		return model.PricePoint{}, fmt.Errorf("missing price at %s", raw)
	}
	return model.PricePoint{Time: ts, Price: price.Decimal}, nil
}

// parseTimestamp reads ISO-8601 with or without offset; naive values are UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", raw)
}
