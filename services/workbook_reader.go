package services

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"hr-compliance-api/models"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/blake2b"
)

// sheetRoutes maps sheet-name patterns to entity kinds. The longest matching
// pattern wins, so "Jenis Pelatihan" is a certificate type sheet and
// "Data Pelatihan Karyawan" a training record sheet. Ties go to the earlier route.
var sheetRoutes = []struct {
	kind     string
	patterns []string
}{
	{models.SubjectCertificateTypes, []string{
		"certificate type", "certificate_type", "jenis sertifikat", "training type", "jenis pelatihan", "tipe sertifikat",
	}},
	{models.SubjectDepartments, []string{"department", "departemen", "bagian", "divisi", "division"}},
	{models.SubjectEmployees, []string{"employee", "karyawan", "pegawai", "staff"}},
	{models.SubjectTrainingRecords, []string{
		"training record", "sertifikat", "pelatihan", "certificate", "training", "record",
	}},
}

// RouteSheet returns the entity kind a sheet name refers to, or "".
func RouteSheet(name string) string {
	folded := strings.ReplaceAll(NormalizeHeader(name), "_", " ")
	kind, longest := "", 0
	for _, route := range sheetRoutes {
		for _, p := range route.patterns {
			pattern := strings.ReplaceAll(NormalizeHeader(p), "_", " ")
			if len(pattern) > longest && strings.Contains(folded, pattern) {
				kind, longest = route.kind, len(pattern)
			}
		}
	}
	return kind
}

// FileChecksum identifies an upload by content.
func FileChecksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReadWorkbook splits an upload into routed sheets. forceKind routes a
// single-subject upload regardless of sheet names; it then reads only the
// first sheet that has data.
func ReadWorkbook(fileName string, data []byte, forceKind string) ([]SheetInput, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return readXLSX(data, forceKind)
	case ".csv":
		return readCSV(fileName, data, forceKind)
	}
	return nil, ErrUnsupportedFileFormat
}

func readXLSX(data []byte, forceKind string) ([]SheetInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFileFormat, err)
	}
	defer f.Close()

	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var sheets []SheetInput
	for _, name := range f.GetSheetList() {
		kind := forceKind
		if kind == "" {
			kind = RouteSheet(name)
		}
		if kind == "" {
			logrus.WithField("sheet", name).Info("sheet name not recognized, skipping")
			continue
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheet := buildSheet(name, kind, rows)
		if len(sheet.Rows) == 0 {
			continue
		}
		sheet.Date1904 = date1904
		sheets = append(sheets, sheet)
		if forceKind != "" {
			break
		}
	}
	if len(sheets) == 0 {
		return nil, ErrNoSheetsToImport
	}
	return sheets, nil
}

func readCSV(fileName string, data []byte, forceKind string) ([]SheetInput, error) {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	kind := forceKind
	if kind == "" {
		kind = RouteSheet(base)
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: cannot tell what %q contains, pass the entity kind", ErrNoSheetsToImport, fileName)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = sniffDelimiter(data)

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	sheet := buildSheet(base, kind, rows)
	if len(sheet.Rows) == 0 {
		return nil, ErrNoSheetsToImport
	}
	return []SheetInput{sheet}, nil
}

// buildSheet takes the first non-empty row as the header and drops trailing
// blank rows. Row numbers are 1-based sheet positions.
func buildSheet(name, kind string, rows [][]string) SheetInput {
	sheet := SheetInput{Name: name, Kind: kind}
	headerIdx := -1
	for i, row := range rows {
		if !blankRecord(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return sheet
	}
	headers := rows[headerIdx]
	last := len(rows) - 1
	for last > headerIdx && blankRecord(rows[last]) {
		last--
	}
	for i := headerIdx + 1; i <= last; i++ {
		values := make([]any, len(rows[i]))
		for j, v := range rows[i] {
			values[j] = v
		}
		sheet.Rows = append(sheet.Rows, RawRow{Number: i + 1, Headers: headers, Values: values})
	}
	return sheet
}

func blankRecord(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks ';' for exports from locales that use a decimal comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
