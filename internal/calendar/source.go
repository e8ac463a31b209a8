package calendar

import (
	"net/url"
	"strings"
)

// Booking sources recorded on imported bookings.
const (
	SourceBookingCom = "booking.com"
	SourceAirbnb     = "airbnb"
	SourceVrbo       = "vrbo"
	SourceICal       = "ical"
)

// PlatformFromURL names the booking platform that publishes the calendar at rawURL.
func PlatformFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SourceICal
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "booking.com" || strings.HasSuffix(host, ".booking.com"):
		return SourceBookingCom
	case strings.Contains(host, "airbnb."):
		return SourceAirbnb
	case strings.Contains(host, "vrbo.") || strings.Contains(host, "homeaway."):
		return SourceVrbo
	default:
		return SourceICal
	}
}

// redactURL hides the path and query of a calendar URL for logging.
// OTA export links embed private tokens.
//
//	https://admin.booking.com/hotel/ical.html?t=abcd -> https://admin.booking.com/...(redacted)
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "ical://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
