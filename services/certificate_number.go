package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hr-compliance-api/models"

	"gorm.io/gorm"
)

// CertificateNumber is the {PROVIDER}/OPR-{sequence}/{MONTH}/{YEAR} convention
// used by the operator training provider.
type CertificateNumber struct {
	Provider string
	Sequence int
	Month    time.Month
	Year     int
}

var certificateNumberPattern = regexp.MustCompile(`(?i)^([a-z0-9]+)/OPR-(\d+)/([IVX]+|\d{1,2})/(\d{4})$`)

var romanMonths = []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}

// ParseCertificateNumber recognizes the convention with Roman or numeric months.
func ParseCertificateNumber(s string) (CertificateNumber, bool) {
	m := certificateNumberPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return CertificateNumber{}, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return CertificateNumber{}, false
	}
	month := parseMonthToken(m[3])
	if month == 0 {
		return CertificateNumber{}, false
	}
	year, _ := strconv.Atoi(m[4])
	return CertificateNumber{
		Provider: strings.ToUpper(m[1]),
		Sequence: seq,
		Month:    month,
		Year:     year,
	}, true
}

func parseMonthToken(tok string) time.Month {
	if n, err := strconv.Atoi(tok); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n)
		}
		return 0
	}
	upper := strings.ToUpper(tok)
	for i, r := range romanMonths {
		if r == upper {
			return time.Month(i + 1)
		}
	}
	return 0
}

func (n CertificateNumber) String() string {
	month := ""
	if n.Month >= time.January && n.Month <= time.December {
		month = romanMonths[n.Month-1]
	}
	return fmt.Sprintf("%s/OPR-%d/%s/%d", n.Provider, n.Sequence, month, n.Year)
}

// NextCertificateSequence returns the sequence that follows currentMax.
func NextCertificateSequence(currentMax int) int {
	if currentMax < 0 {
		currentMax = 0
	}
	return currentMax + 1
}

// NewCertificateNumber builds a number for the given provider, sequence and issue date.
func NewCertificateNumber(provider string, sequence int, issued time.Time) CertificateNumber {
	return CertificateNumber{
		Provider: strings.ToUpper(strings.TrimSpace(provider)),
		Sequence: sequence,
		Month:    issued.Month(),
		Year:     issued.Year(),
	}
}

// MaxCertificateSequence scans stored numbers of one provider and returns the
// highest sequence in use, or 0.
func MaxCertificateSequence(ctx context.Context, db *gorm.DB, provider string) (int, error) {
	provider = strings.ToUpper(strings.TrimSpace(provider))
	var numbers []string
	err := db.WithContext(ctx).Model(&models.CertificateRecord{}).
		Where("certificate_number LIKE ?", provider+"/OPR-%").
		Pluck("certificate_number", &numbers).Error
	if err != nil {
		return 0, err
	}
	maxSeq := 0
	for _, raw := range numbers {
		if n, ok := ParseCertificateNumber(raw); ok && n.Provider == provider && n.Sequence > maxSeq {
			maxSeq = n.Sequence
		}
	}
	return maxSeq, nil
}
