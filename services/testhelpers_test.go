package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)

// newTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps the batch transaction and its savepoints on one session.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))
	return db
}

func testSettings() *config.Settings {
	return &config.Settings{
		DBDriver:            "sqlite",
		DefaultWarningDays:  30,
		DefaultProviderCode: "HRC",
		ReportMaxItems:      15,
		ImportLockName:      "test_import",
	}
}

func newTestCoordinator(t *testing.T, db *gorm.DB) *ImportCoordinator {
	t.Helper()
	c, err := NewImportCoordinator(db, testSettings())
	require.NoError(t, err)
	c.now = func() time.Time { return testNow }
	return c
}

// mergeOptions mirrors the HTTP defaults.
func mergeOptions() ImportOptions {
	return ImportOptions{UpdateExisting: true, CreateMissing: true, SoftDelete: true, TriggerSource: "test"}
}

// sheetOf builds a sheet whose first data row sits on sheet row 2.
func sheetOf(kind string, headers []string, rows ...[]any) SheetInput {
	s := SheetInput{Name: kind, Kind: kind}
	for i, values := range rows {
		s.Rows = append(s.Rows, RawRow{Number: i + 2, Headers: headers, Values: values})
	}
	return s
}

func seedDepartment(t *testing.T, db *gorm.DB, code, name string) *models.Department {
	t.Helper()
	d := &models.Department{Code: code, Name: name, IsActive: true}
	require.NoError(t, db.Create(d).Error)
	return d
}

func seedEmployee(t *testing.T, db *gorm.DB, employeeID, name string, dept *models.Department) *models.Employee {
	t.Helper()
	e := &models.Employee{EmployeeID: employeeID, Name: name, Status: models.EmployeeStatusActive}
	if dept != nil {
		e.DepartmentID = &dept.ID
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

func seedCertificateType(t *testing.T, db *gorm.DB, code, name string, validityMonths int) *models.CertificateType {
	t.Helper()
	ct := &models.CertificateType{Code: code, Name: name, WarningDays: 30, IsActive: true}
	if validityMonths > 0 {
		ct.ValidityMonths = &validityMonths
		ct.IsRecurrent = true
	}
	require.NoError(t, db.Create(ct).Error)
	return ct
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// failCreate makes inserts of matching rows fail before they reach the database.
func failCreate(t *testing.T, db *gorm.DB, name string, match func(dest any) bool, err error) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if match(tx.Statement.Dest) {
			_ = tx.AddError(err)
		}
	}))
}
