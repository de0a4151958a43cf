package ride

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// whenParser handles free-form relative expressions like "tomorrow 18:00".
// Rules are registered once; the parser itself is stateless per Parse call.
var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// dateLayouts are tried before falling back to natural-language parsing.
var dateLayouts = []string{
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"02.01 15:04",
	"2006-01-02",
	"02.01.2006",
}

// ParseDate resolves a user-typed date expression to an absolute instant.
// Explicit layouts win over natural-language interpretation so "02.01.2006"
// is never read as anything else. Returns a ValidationError on unparseable
// input; callers must not silently default.
func ParseDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, &ValidationError{Field: "date", Reason: "date is required"}
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, text, now.Location())
		if err != nil {
			continue
		}
		// Short layouts carry no year; anchor them to the current one.
		if t.Year() == 0 {
			t = t.AddDate(now.Year(), 0, 0)
		}
		return t, nil
	}

	result, err := whenParser.Parse(text, now)
	if err != nil || result == nil {
		return time.Time{}, &ValidationError{
			Field:  "date",
			Reason: "could not understand the date, try something like 'tomorrow 18:00' or '2025-06-01 10:00'",
		}
	}

	return result.Time, nil
}
