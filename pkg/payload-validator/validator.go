package validator

import (
	"encoding/json"
	"strings"

	"github.com/emersion/go-ical"
)

const byteOrderMark = "\uFEFF"

// IsValidICalendar reports whether text is an iCalendar document,
// i.e. whether it parses and its root component is a VCALENDAR.
// Individual events are not checked.
func IsValidICalendar(text string) (valid bool) {
	// the parser sees untrusted upstream bytes
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()
	// some exporters prefix the document with a byte order mark
	text = strings.TrimPrefix(text, byteOrderMark)
	cal, err := ical.NewDecoder(strings.NewReader(text)).Decode()
	if err != nil || cal == nil || cal.Component == nil {
		return false
	}
	return strings.EqualFold(cal.Name, "vcalendar")
}

// IsValidJSON reports whether data is syntactically valid JSON.
// The shape of the document is not checked.
func IsValidJSON(data []byte) bool {
	return json.Valid(data)
}
