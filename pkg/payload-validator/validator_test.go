package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const calendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//calendar-cache//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:1@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240101T100000Z\r\n" +
	"SUMMARY:Lecture\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestValidCalendar(t *testing.T) {
	assert.True(t, IsValidICalendar(calendar))
}

func TestEmptyCalendarIsValid(t *testing.T) {
	assert.True(t, IsValidICalendar("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nEND:VCALENDAR\r\n"))
}

func TestCalendarWithByteOrderMarkIsValid(t *testing.T) {
	assert.True(t, IsValidICalendar("\uFEFF"+calendar))
	assert.False(t, IsValidICalendar("\uFEFF"))
}

func TestInvalidCalendars(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"html":         "<html><body>Service unavailable</body></html>",
		"json":         `{"error":"not found"}`,
		"unterminated": "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n",
		"wrong root":   "BEGIN:VEVENT\r\nUID:1@test\r\nEND:VEVENT\r\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, IsValidICalendar(text))
		})
	}
}

func TestIsValidJSON(t *testing.T) {
	assert.True(t, IsValidJSON([]byte(`{"id":"abc123","name":{"en":"Course"}}`)))
	assert.True(t, IsValidJSON([]byte(`[]`)))
	assert.False(t, IsValidJSON([]byte(`{"id":`)))
	assert.False(t, IsValidJSON([]byte(`<html></html>`)))
}
