package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"

	"github.com/rental-manager/backend/internal/storage/models"
)

// ParseError is returned when a payload cannot be read as an iCal calendar.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing calendar: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats describes what the parser kept and discarded.
type ParseStats struct {
	Total   int
	Dropped int
}

// Parser converts iCal text into calendar events.
type Parser struct{}

// NewParser creates a new iCal parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads every VEVENT in data. Events missing a UID, start or end are
// dropped and counted in the returned stats. DATE values become midnight UTC.
func (p *Parser) Parse(data string) ([]models.CalendarEvent, ParseStats, error) {
	var stats ParseStats

	if !strings.Contains(data, calendarMarker) {
		return nil, stats, &ParseError{Err: fmt.Errorf("missing %s", calendarMarker)}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(data))
	if err != nil {
		return parseBlocks(data, err)
	}

	vevents := cal.Events()
	events := make([]models.CalendarEvent, 0, len(vevents))
	for _, ve := range vevents {
		stats.Total++

		event, err := parseEvent(ve)
		if err != nil {
			stats.Dropped++
			continue
		}
		events = append(events, event)
	}

	return events, stats, nil
}

// parseBlocks is the slow path for documents the tokenizer rejects as a whole.
// Each VEVENT is tokenized on its own so one broken line only costs its event.
// docErr is returned when the document holds no VEVENT blocks at all.
func parseBlocks(data string, docErr error) ([]models.CalendarEvent, ParseStats, error) {
	var stats ParseStats

	blocks := splitEventBlocks(data)
	if len(blocks) == 0 {
		return nil, stats, &ParseError{Err: docErr}
	}

	events := make([]models.CalendarEvent, 0, len(blocks))
	for _, block := range blocks {
		stats.Total++

		cal, err := ical.ParseCalendar(strings.NewReader(
			"BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//rental-manager//calendar-sync//EN\r\n" + block + "END:VCALENDAR\r\n"))
		if err != nil || len(cal.Events()) != 1 {
			stats.Dropped++
			continue
		}
		event, err := parseEvent(cal.Events()[0])
		if err != nil {
			stats.Dropped++
			continue
		}
		events = append(events, event)
	}

	return events, stats, nil
}

// splitEventBlocks returns the raw BEGIN:VEVENT..END:VEVENT sections of data,
// CRLF-terminated. An unterminated trailing block is still returned so it is
// counted as dropped.
func splitEventBlocks(data string) []string {
	var (
		blocks []string
		cur    strings.Builder
		inside bool
	)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		marker := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case marker == "BEGIN:VEVENT":
			if inside {
				blocks = append(blocks, cur.String())
			}
			cur.Reset()
			inside = true
		case !inside:
			continue
		}

		cur.WriteString(line)
		cur.WriteString("\r\n")

		if marker == "END:VEVENT" {
			blocks = append(blocks, cur.String())
			cur.Reset()
			inside = false
		}
	}
	if inside {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

func parseEvent(ve *ical.VEvent) (models.CalendarEvent, error) {
	var event models.CalendarEvent

	event.UID = strings.TrimSpace(propertyText(ve, ical.ComponentPropertyUniqueId))
	if event.UID == "" {
		return event, errors.New("missing UID")
	}

	start, err := eventTime(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		return event, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := eventTime(ve, ical.ComponentPropertyDtEnd)
	if err != nil {
		return event, fmt.Errorf("DTEND: %w", err)
	}
	event.Start = start
	event.End = end

	event.Summary = propertyText(ve, ical.ComponentPropertySummary)
	event.Description = propertyText(ve, ical.ComponentPropertyDescription)
	event.Location = propertyText(ve, ical.ComponentPropertyLocation)
	event.Organizer = organizerName(ve.GetProperty(ical.ComponentPropertyOrganizer))

	return event, nil
}

func propertyText(ve *ical.VEvent, name ical.ComponentProperty) string {
	prop := ve.GetProperty(name)
	if prop == nil {
		return ""
	}
	return unescapeText(prop.Value)
}

// organizerName flattens ORGANIZER to its CN parameter, or the bare address.
func organizerName(prop *ical.IANAProperty) string {
	if prop == nil {
		return ""
	}
	if cn, ok := prop.ICalParameters["CN"]; ok && len(cn) > 0 && strings.TrimSpace(cn[0]) != "" {
		return strings.Trim(strings.TrimSpace(cn[0]), `"`)
	}
	value := strings.TrimSpace(prop.Value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "mailto:") {
		value = value[7:]
	}
	return value
}

func eventTime(ve *ical.VEvent, name ical.ComponentProperty) (time.Time, error) {
	prop := ve.GetProperty(name)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return time.Time{}, errors.New("missing value")
	}

	value := strings.TrimSpace(prop.Value)
	if isDateOnly(prop) {
		return time.Parse("20060102", value)
	}

	var (
		t   time.Time
		err error
	)
	switch name {
	case ical.ComponentPropertyDtStart:
		t, err = ve.GetStartAt()
	case ical.ComponentPropertyDtEnd:
		t, err = ve.GetEndAt()
	}
	if err == nil && !t.IsZero() {
		return t, nil
	}

	return parseDateTime(value, prop.ICalParameters["TZID"])
}

func isDateOnly(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// parseDateTime handles the basic DATE-TIME forms when the library cannot.
func parseDateTime(value string, tzid []string) (time.Time, error) {
	if strings.HasSuffix(value, "Z") {
		return time.Parse("20060102T150405Z", value)
	}

	loc := time.UTC
	if len(tzid) > 0 && tzid[0] != "" {
		if l, err := time.LoadLocation(tzid[0]); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation("20060102T150405", value, loc)
}

var textUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\N`, "\n",
	`\,`, ",",
	`\;`, ";",
	`\\`, `\`,
)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
