// Package extract pulls structured procurement fields out of announcement
// document text. Each field has its own pattern and fails independently: a
// document with only a budget line still yields a budget.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kendricksin/feed-scanner/internal/store"
)

var (
	// budgetRe matches a grouped decimal amount followed by the baht word.
	budgetRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)\s*บาท`)

	// quantityRe matches the "จำนวน" (quantity) label.
	quantityRe = regexp.MustCompile(`จำนวน\s*(\d+)`)

	yearsRe  = regexp.MustCompile(`(\d+)\s*ปี`)
	monthsRe = regexp.MustCompile(`(\d+)\s*เดือน`)

	// dateRe matches "วันที่ <day> <Thai month> <year>" with Buddhist Era
	// years. Thai numerals are normalized to ASCII before matching.
	dateRe = regexp.MustCompile(`วันที่\s*(\d{1,2})\s*(มกราคม|กุมภาพันธ์|มีนาคม|เมษายน|พฤษภาคม|มิถุนายน|กรกฎาคม|สิงหาคม|กันยายน|ตุลาคม|พฤศจิกายน|ธันวาคม)\s*(\d{4})`)

	// phoneRe matches the "โทรศัพท์" (telephone) label followed by digits,
	// spaces, and dashes.
	phoneRe = regexp.MustCompile(`โทรศัพท์\s*:?\s*([\d\s-]+)`)

	emailRe = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

var thaiMonths = map[string]time.Month{
	"มกราคม":     time.January,
	"กุมภาพันธ์": time.February,
	"มีนาคม":     time.March,
	"เมษายน":     time.April,
	"พฤษภาคม":    time.May,
	"มิถุนายน":   time.June,
	"กรกฎาคม":    time.July,
	"สิงหาคม":    time.August,
	"กันยายน":    time.September,
	"ตุลาคม":     time.October,
	"พฤศจิกายน":  time.November,
	"ธันวาคม":    time.December,
}

var thaiDigits = strings.NewReplacer(
	"๐", "0", "๑", "1", "๒", "2", "๓", "3", "๔", "4",
	"๕", "5", "๖", "6", "๗", "7", "๘", "8", "๙", "9",
)

// Fields runs every extractor over text and returns whatever matched.
// Unmatched fields stay nil.
func Fields(text string) store.Enrichment {
	return store.Enrichment{
		BudgetAmount:   Budget(text),
		Quantity:       Quantity(text),
		DurationYears:  DurationYears(text),
		DurationMonths: DurationMonths(text),
		SubmissionDate: SubmissionDate(text),
		ContactPhone:   Phone(text),
		ContactEmail:   Email(text),
	}
}

// Budget returns the first baht amount, commas stripped.
func Budget(text string) *float64 {
	m := budgetRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// Quantity returns the first quantity figure.
func Quantity(text string) *int64 {
	return firstInt(quantityRe, text)
}

// DurationYears returns the first year-count figure.
func DurationYears(text string) *int64 {
	return firstInt(yearsRe, text)
}

// DurationMonths returns the first month-count figure.
func DurationMonths(text string) *int64 {
	return firstInt(monthsRe, text)
}

// SubmissionDate returns the first Thai-format submission date, converted
// from Buddhist Era to the common era. Thai numerals in day and year are
// accepted. An impossible date (30 February) returns nil.
func SubmissionDate(text string) *time.Time {
	normalized := thaiDigits.Replace(text)
	m := dateRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	month, ok := thaiMonths[m[2]]
	if !ok {
		return nil
	}
	beYear, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	year := beYear - 543

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 becomes Mar 2); reject that.
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return nil
	}
	return &d
}

// Phone returns the first labeled phone number with internal whitespace
// removed. Dashes are kept as written.
func Phone(text string) *string {
	m := phoneRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	phone := whitespaceRe.ReplaceAllString(m[1], "")
	if phone == "" {
		return nil
	}
	return &phone
}

// Email returns the first email address in the text.
func Email(text string) *string {
	m := emailRe.FindString(text)
	if m == "" {
		return nil
	}
	return &m
}

func firstInt(re *regexp.Regexp, text string) *int64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
