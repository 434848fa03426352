package services

import (
	"fmt"
	"strings"

	"hr-compliance-api/models"
	"hr-compliance-api/utils"
)

type employeeInput struct {
	employeeID string
	nip        string
	name       string
	position   string
	email      string
	status     string
	department *models.Department
}

type employeeStrategy struct{}

func (employeeStrategy) Kind() string { return models.SubjectEmployees }

func (employeeStrategy) EmptyCheckFields() []string {
	return []string{FieldEmployeeID, FieldNIP, FieldName, FieldEmployeeName, FieldDepartment, FieldDepartmentCode, FieldPosition}
}

func (employeeStrategy) Normalize(row CanonicalRow) {
	if !row.Has(FieldName) && row.Has(FieldEmployeeName) {
		row[FieldName] = row[FieldEmployeeName]
	}
	if row.Has(FieldDepartmentCode) {
		row[FieldDepartmentCode] = NormalizeCode(row.String(FieldDepartmentCode))
	}
}

func (employeeStrategy) Validate(row CanonicalRow) error {
	var missing []string
	if !row.Has(FieldEmployeeID) && !row.Has(FieldNIP) {
		missing = append(missing, FieldEmployeeID)
	}
	if !row.Has(FieldName) {
		missing = append(missing, FieldName)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (employeeStrategy) NaturalKey(row CanonicalRow) string {
	if id := row.String(FieldEmployeeID); id != "" {
		return "id:" + id
	}
	return "nip:" + row.String(FieldNIP)
}

func (employeeStrategy) Resolve(bc *batchContext, row CanonicalRow) (*employeeInput, error) {
	in := &employeeInput{
		employeeID: row.String(FieldEmployeeID),
		nip:        row.String(FieldNIP),
		name:       row.String(FieldName),
		position:   row.String(FieldPosition),
	}
	if in.employeeID == "" {
		in.employeeID = in.nip
	}
	if email := strings.ToLower(row.String(FieldEmail)); email != "" {
		if utils.ValidateEmail(email) {
			in.email = email
		} else {
			bc.warn("invalid email %q ignored", email)
		}
	}
	if raw := row.String(FieldStatus); raw != "" {
		if status, ok := employeeStatus(raw); ok {
			in.status = status
		} else {
			bc.warn("unknown employee status %q ignored", raw)
		}
	}

	code, name := row.String(FieldDepartmentCode), row.String(FieldDepartment)
	if code == "" && name == "" {
		return in, nil
	}
	dept, err := bc.resolver.FindOrCreateDepartment(code, name)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		key := code
		if key == "" {
			key = name
		}
		return nil, &ResolutionError{Entity: "department", Key: key}
	}
	in.department = dept
	return in, nil
}

func (employeeStrategy) FindExisting(bc *batchContext, in *employeeInput) (*models.Employee, error) {
	return bc.resolver.FindEmployee(in.employeeID, in.nip)
}

// Diff only touches mutable attributes; the identifiers stay as stored except
// that a missing NIP is filled in.
func (employeeStrategy) Diff(bc *batchContext, existing *models.Employee, in *employeeInput) (*models.Employee, *changeSet) {
	merged := *existing
	merged.Department = nil
	cs := &changeSet{}
	cs.setString("name", &merged.Name, in.name)
	cs.setString("position", &merged.Position, in.position)
	cs.setString("email", &merged.Email, in.email)
	if existing.NIP == nil && in.nip != "" && in.nip != existing.EmployeeID {
		cs.setStringPtr("nip", &merged.NIP, &in.nip)
	}
	if in.department != nil && in.department.ID != 0 {
		id := in.department.ID
		cs.setUintPtr("department_id", &merged.DepartmentID, &id)
	}
	status := in.status
	if status == "" && !existing.IsActive() && bc.opts.SyncMode == SyncModeReplace {
		status = models.EmployeeStatusActive
	}
	cs.setString("status", &merged.Status, status)
	return &merged, cs
}

func (employeeStrategy) Create(bc *batchContext, in *employeeInput) (*models.Employee, error) {
	emp := &models.Employee{
		EmployeeID: in.employeeID,
		Name:       in.name,
		Position:   in.position,
		Email:      in.email,
		Status:     in.status,
	}
	if emp.Status == "" {
		emp.Status = models.EmployeeStatusActive
	}
	if in.nip != "" {
		nip := in.nip
		emp.NIP = &nip
	}
	if in.department != nil && in.department.ID != 0 {
		id := in.department.ID
		emp.DepartmentID = &id
	}
	if err := bc.insert(emp, "employee"); err != nil {
		return nil, err
	}
	return emp, nil
}

func (employeeStrategy) Remember(bc *batchContext, e *models.Employee) {
	bc.resolver.RememberEmployee(e)
}

func (employeeStrategy) StoredKey(e *models.Employee) string { return e.EmployeeID }

func (employeeStrategy) Describe(e *models.Employee) string {
	return fmt.Sprintf("employee %s (%s)", e.EmployeeID, e.Name)
}

func employeeStatus(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "aktif", "1", "yes", "ya", "tetap", "kontrak", "permanent", "contract":
		return models.EmployeeStatusActive, true
	case "inactive", "nonaktif", "non aktif", "tidak aktif", "0", "no", "resign", "resigned",
		"keluar", "terminated", "pensiun", "retired":
		return models.EmployeeStatusInactive, true
	}
	return "", false
}
