package calendar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rental-manager/backend/internal/storage/models"
)

// Guest labels used when no real name can be read from an event.
const (
	BlockedGuestLabel = "Blocked period - needs review"
	GenericGuestLabel = "Calendar guest"
	needsReviewSuffix = " (needs review)"
)

var closureKeywords = []string{"closed", "blocked", "unavailable", "not available"}

var (
	guestNamePattern  = regexp.MustCompile(`^([\p{L} ]{2,50})(?:[-–(]|$)`)
	guestCountPattern = regexp.MustCompile(`(?i)(\d+)\s*guests?\b`)
	emailPattern      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern      = regexp.MustCompile(`(?i)\b(?:phone|tel|mobile)\s*[:.]?\s*(\+?\d[\d \t().\-]{4,}\d)`)
)

// GuestInfo is the guest data recovered from a calendar event.
type GuestInfo struct {
	Name        string
	Email       string
	Phone       string
	GuestCount  int
	Placeholder bool
}

// ExtractGuestInfo derives guest details from an event's summary and description.
// It never fails; events without a usable name get a placeholder label.
func ExtractGuestInfo(event models.CalendarEvent) GuestInfo {
	info := GuestInfo{GuestCount: 1}
	summary := strings.TrimSpace(event.Summary)

	if containsClosureKeyword(summary) {
		info.Name = BlockedGuestLabel
		info.Placeholder = true
		extractContact(&info, event.Description)
		return info
	}

	switch {
	case summary == "":
		info.Name = GenericGuestLabel
		info.Placeholder = true
	default:
		if name, ok := matchGuestName(summary); ok {
			info.Name = name
		} else {
			info.Name = summary + needsReviewSuffix
			info.Placeholder = true
		}
	}

	if m := guestCountPattern.FindStringSubmatch(summary); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
			info.GuestCount = n
		}
	}

	extractContact(&info, event.Description)
	return info
}

func containsClosureKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range closureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func matchGuestName(summary string) (string, bool) {
	m := guestNamePattern.FindStringSubmatch(summary)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if len([]rune(name)) < 2 || containsClosureKeyword(name) {
		return "", false
	}
	return name, true
}

func extractContact(info *GuestInfo, description string) {
	if description == "" {
		return
	}
	if m := emailPattern.FindString(description); m != "" {
		info.Email = strings.TrimSpace(m)
	}
	if m := phonePattern.FindStringSubmatch(description); m != nil {
		info.Phone = strings.TrimSpace(m[1])
	}
}
