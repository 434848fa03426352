package services

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hr-compliance-api/utils"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// RawRow is one spreadsheet data row with its header row. Number is the
// 1-based row number in the sheet so outcomes can be traced back to the file.
type RawRow struct {
	Number  int
	Headers []string
	Values  []any
}

// CanonicalRow maps canonical field names to cleaned cell values.
type CanonicalRow map[string]any

// String returns the textual value of a field, or "" when absent.
func (r CanonicalRow) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(toText(v))
}

// Has reports whether a field carries a non-empty value.
func (r CanonicalRow) Has(field string) bool {
	return r.String(field) != ""
}

// Int parses an integer field. ok is false when the field is empty or not numeric.
func (r CanonicalRow) Int(field string) (int, bool) {
	s := r.String(field)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// Bool parses yes/no style flags in English and Indonesian.
func (r CanonicalRow) Bool(field string) (bool, bool) {
	switch strings.ToLower(r.String(field)) {
	case "1", "y", "yes", "true", "ya", "wajib", "aktif", "active", "x", "v":
		return true, true
	case "0", "n", "no", "false", "tidak", "t", "inactive", "nonaktif", "tidak aktif":
		return false, true
	}
	return false, false
}

// Snapshot returns the row as string values for outcome logging.
func (r CanonicalRow) Snapshot() map[string]string {
	out := make(map[string]string, len(r))
	for k := range r {
		out[k] = r.String(k)
	}
	return out
}

var (
	separatorRun = regexp.MustCompile(`[\s\-._]+`)
)

// NormalizeHeader folds a raw header into its lookup form: diacritics removed,
// lower-cased, separators collapsed to "_", other punctuation dropped.
func NormalizeHeader(h string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = separatorRun.ReplaceAllString(folded, "_")
	folded = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, folded)
	folded = separatorRun.ReplaceAllString(folded, "_")
	return strings.Trim(folded, "_")
}

// RowNormalizer maps raw headers to canonical fields through a static synonym table.
type RowNormalizer struct {
	aliases map[string]string
}

// NewRowNormalizer builds the lookup table from the built-in synonyms plus optional extras.
func NewRowNormalizer(extra map[string][]string) *RowNormalizer {
	aliases := make(map[string]string)
	add := func(table map[string][]string) {
		for canonical, synonyms := range table {
			if key := NormalizeHeader(canonical); key != "" {
				aliases[key] = canonical
			}
			for _, alias := range synonyms {
				if key := NormalizeHeader(alias); key != "" {
					aliases[key] = canonical
				}
			}
		}
	}
	add(headerSynonyms)
	if extra != nil {
		add(extra)
	}
	return &RowNormalizer{aliases: aliases}
}

// LoadHeaderSynonyms reads additional synonyms from a YAML file shaped like
// `employee_id: ["no. pegawai", "id staf"]`.
func LoadHeaderSynonyms(path string) (map[string][]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header synonyms: %w", err)
	}
	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse header synonyms: %w", err)
	}
	for canonical := range extra {
		if _, known := headerSynonyms[canonical]; !known {
			return nil, fmt.Errorf("header synonyms: unknown canonical field %q", canonical)
		}
	}
	return extra, nil
}

// CanonicalField returns the canonical field for a raw header, or "".
func (n *RowNormalizer) CanonicalField(header string) string {
	return n.aliases[NormalizeHeader(header)]
}

// Normalize maps the row to canonical fields. Unknown headers are dropped; when
// two headers map to the same field the first non-empty value wins.
func (n *RowNormalizer) Normalize(raw RawRow) CanonicalRow {
	row := make(CanonicalRow, len(raw.Headers))
	for i, header := range raw.Headers {
		field := n.CanonicalField(header)
		if field == "" {
			continue
		}
		var value any
		if i < len(raw.Values) {
			value = cleanValue(raw.Values[i])
		}
		if existing, ok := row[field]; ok && !isEmptyValue(existing) {
			continue
		}
		row[field] = value
	}
	return row
}

// IsEmptyRow reports whether every field in fields is empty. An empty field
// list checks every value of the row.
func IsEmptyRow(row CanonicalRow, fields []string) bool {
	if len(fields) == 0 {
		for _, v := range row {
			if !isEmptyValue(v) {
				return false
			}
		}
		return true
	}
	for _, f := range fields {
		if !isEmptyValue(row[f]) {
			return false
		}
	}
	return true
}

func cleanValue(v any) any {
	if s, ok := v.(string); ok {
		return utils.SanitizeInput(s)
	}
	return v
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return toText(float64(t))
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
