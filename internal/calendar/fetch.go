package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultFetchTimeout bounds a single calendar download.
const DefaultFetchTimeout = 30 * time.Second

// maxCalendarSize caps the body read from a remote calendar.
const maxCalendarSize = 20 << 20

// calendarMarker must appear in any payload accepted as calendar data.
const calendarMarker = "BEGIN:VCALENDAR"

// FetchErrorKind classifies why a calendar download failed.
type FetchErrorKind string

// Fetch error kinds
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchNotFound   FetchErrorKind = "not_found"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchMalformed  FetchErrorKind = "malformed"
	FetchNetwork    FetchErrorKind = "network"
	FetchInvalidURL FetchErrorKind = "invalid_url"
)

// FetchError is returned when a remote calendar cannot be retrieved.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching calendar %s: %s", redactURL(e.URL), e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Diagnostic returns a message suitable for showing to the property owner.
func (e *FetchError) Diagnostic() string {
	switch e.Kind {
	case FetchTimeout:
		return "Calendar request timed out"
	case FetchNotFound:
		return "Calendar URL not found (HTTP 404)"
	case FetchHTTPStatus:
		return fmt.Sprintf("Calendar server returned HTTP %d", e.StatusCode)
	case FetchMalformed:
		return "URL did not return iCal calendar data"
	case FetchInvalidURL:
		return "Calendar URL is not a valid http(s) URL"
	default:
		return "Could not reach calendar URL"
	}
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond limits outbound requests across all properties. Zero disables limiting.
	RequestsPerSecond float64
}

// Fetcher downloads raw iCal feeds over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewFetcher creates a new calendar fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "RentalManager-CalendarSync/1.0"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		limiter:   limiter,
	}
}

// Fetch performs a single GET against rawURL and returns the calendar text.
// There are no retries; every failure is returned as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return "", &FetchError{Kind: FetchInvalidURL, URL: rawURL, Err: err}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", classifyTransportError(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{Kind: FetchInvalidURL, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", &FetchError{Kind: FetchNotFound, URL: rawURL, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &FetchError{Kind: FetchHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCalendarSize))
	if err != nil {
		return "", classifyTransportError(rawURL, err)
	}

	text := string(body)
	if !strings.Contains(text, calendarMarker) {
		return "", &FetchError{
			Kind:       FetchMalformed,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response has no %s marker", calendarMarker),
		}
	}

	return text, nil
}

func classifyTransportError(rawURL string, err error) *FetchError {
	kind := FetchNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FetchTimeout
	}

	// *url.Error repeats the full URL, token included.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

// ValidateURL checks that rawURL is an absolute http or https URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
