package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
)

const maxSpreadsheetSerial = 2958465 // 9999-12-31

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2/1/06",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2-Jan-06",
}

// Indonesian month names mapped to the English forms time.Parse understands.
var monthNameReplacer = strings.NewReplacer(
	"januari", "january",
	"februari", "february",
	"pebruari", "february",
	"maret", "march",
	"mei", "may",
	"juni", "june",
	"juli", "july",
	"agustus", "august",
	"agu", "aug",
	"oktober", "october",
	"okt", "oct",
	"nopember", "november",
	"desember", "december",
	"des", "dec",
)

var (
	ordinalSuffix  = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	weekdayPrefix  = regexp.MustCompile(`^(mon|tue|wed|thu|fri|sat|sun|senin|selasa|rabu|kamis|jumat|sabtu|minggu)[a-z]*,?\s+`)
	numericPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// ParseDate converts a spreadsheet cell into a calendar date (UTC midnight).
// Empty input yields (nil, nil); unparseable input yields (nil, *DateParseError).
// Serial numbers are read in the 1900 date system.
func ParseDate(value any) (*time.Time, error) {
	return ParseDateIn(value, false)
}

// ParseDateIn is ParseDate for a workbook that may use the 1904 date system.
func ParseDateIn(value any, date1904 bool) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		d := truncateToDate(v)
		return &d, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, nil
		}
		d := truncateToDate(*v)
		return &d, nil
	case float64:
		return fromSerial(v, value, date1904)
	case float32:
		return fromSerial(float64(v), value, date1904)
	case int:
		return fromSerial(float64(v), value, date1904)
	case int64:
		return fromSerial(float64(v), value, date1904)
	case int32:
		return fromSerial(float64(v), value, date1904)
	case uint:
		return fromSerial(float64(v), value, date1904)
	case string:
		return parseDateString(v, date1904)
	}
	return nil, &DateParseError{Value: toText(value)}
}

func parseDateString(raw string, date1904 bool) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return nil, nil
	}

	if numericPattern.MatchString(s) && !(len(s) == 8 && !strings.Contains(s, ".")) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return fromSerial(f, raw, date1904)
		}
	}

	if t, ok := parseWithLayouts(s); ok {
		return &t, nil
	}

	// Lenient pass: lower-case, translate month names, drop weekday and ordinal noise.
	lenient := strings.ToLower(spaceRun.ReplaceAllString(s, " "))
	lenient = weekdayPrefix.ReplaceAllString(lenient, "")
	lenient = ordinalSuffix.ReplaceAllString(lenient, "$1")
	lenient = translateMonthNames(lenient)
	if t, ok := parseWithLayouts(lenient); ok {
		return &t, nil
	}
	if t, ok := parseWithLayouts(titleMonths(lenient)); ok {
		return &t, nil
	}
	if t, err := dateparse.ParseAny(titleMonths(lenient), dateparse.PreferMonthFirst(false)); err == nil {
		d := truncateToDate(t)
		return &d, nil
	}

	return nil, &DateParseError{Value: raw}
}

func parseWithLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateToDate(t), true
		}
	}
	return time.Time{}, false
}

func translateMonthNames(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == ',' || r == '/' })
	for _, w := range words {
		translated := monthNameReplacer.Replace(w)
		if translated != w && isMonthWord(translated) {
			s = strings.Replace(s, w, translated, 1)
		}
	}
	return s
}

func isMonthWord(w string) bool {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if w == name || w == name[:3] {
			return true
		}
	}
	return false
}

type monthWord struct {
	pattern *regexp.Regexp
	repl    string
}

var monthWords = func() []monthWord {
	words := make([]monthWord, 0, 24)
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		words = append(words,
			monthWord{regexp.MustCompile(`\b` + full + `\b`), m.String()},
			monthWord{regexp.MustCompile(`\b` + full[:3] + `\b`), m.String()[:3]},
		)
	}
	return words
}()

// titleMonths capitalizes month names so the case-sensitive layouts match.
func titleMonths(s string) string {
	for _, w := range monthWords {
		s = w.pattern.ReplaceAllString(s, w.repl)
	}
	return s
}

func fromSerial(serial float64, original any, date1904 bool) (*time.Time, error) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSpreadsheetSerial {
		return nil, &DateParseError{Value: toText(original)}
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return nil, &DateParseError{Value: toText(original)}
	}
	t = truncateToDate(t)
	return &t, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
