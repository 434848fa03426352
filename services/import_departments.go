package services

import (
	"fmt"

	"hr-compliance-api/models"
)

type departmentInput struct {
	code      string
	name      string
	nameGiven bool
	parent    *models.Department
	active    *bool
}

type departmentStrategy struct{}

func (departmentStrategy) Kind() string { return models.SubjectDepartments }

func (departmentStrategy) EmptyCheckFields() []string {
	return []string{FieldCode, FieldDepartmentCode, FieldName, FieldDepartment, FieldParentDepartment}
}

func (departmentStrategy) Normalize(row CanonicalRow) {
	if !row.Has(FieldCode) && row.Has(FieldDepartmentCode) {
		row[FieldCode] = row[FieldDepartmentCode]
	}
	if !row.Has(FieldName) && row.Has(FieldDepartment) {
		row[FieldName] = row[FieldDepartment]
	}
	if row.Has(FieldCode) {
		row[FieldCode] = NormalizeCode(row.String(FieldCode))
	}
}

func (departmentStrategy) Validate(row CanonicalRow) error {
	if !row.Has(FieldName) && !row.Has(FieldCode) {
		return &ValidationError{Fields: []string{FieldName}}
	}
	return nil
}

func (departmentStrategy) NaturalKey(row CanonicalRow) string {
	if code := row.String(FieldCode); code != "" {
		return "code:" + code
	}
	return "name:" + foldName(row.String(FieldName))
}

func (departmentStrategy) Resolve(bc *batchContext, row CanonicalRow) (*departmentInput, error) {
	in := &departmentInput{
		code:      row.String(FieldCode),
		name:      row.String(FieldName),
		nameGiven: row.Has(FieldName),
	}
	if in.name == "" {
		in.name = in.code
	}
	if v, ok := row.Bool(FieldActive); ok {
		in.active = &v
	}

	ref := row.String(FieldParentDepartment)
	if ref == "" {
		return in, nil
	}
	if NormalizeCode(ref) == in.code || foldName(ref) == foldName(in.name) {
		bc.warn("department cannot be its own parent, ignoring %q", ref)
		return in, nil
	}
	parent, err := bc.resolver.FindOrCreateDepartment("", ref)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, &ResolutionError{Entity: "parent department", Key: ref}
	}
	in.parent = parent
	return in, nil
}

func (departmentStrategy) FindExisting(bc *batchContext, in *departmentInput) (*models.Department, error) {
	if in.code != "" {
		return bc.resolver.FindDepartment(in.code, "")
	}
	return bc.resolver.FindDepartment("", in.name)
}

func (departmentStrategy) Diff(bc *batchContext, existing *models.Department, in *departmentInput) (*models.Department, *changeSet) {
	merged := *existing
	merged.Parent = nil
	cs := &changeSet{}
	if in.nameGiven {
		cs.setString("name", &merged.Name, in.name)
	}
	if in.parent != nil {
		if in.parent.ID == existing.ID {
			bc.warn("department cannot be its own parent")
		} else {
			id := in.parent.ID
			cs.setUintPtr("parent_id", &merged.ParentID, &id)
		}
	}
	active := in.active
	if active == nil && !existing.IsActive && bc.opts.SyncMode == SyncModeReplace {
		t := true
		active = &t
	}
	cs.setBool("is_active", &merged.IsActive, active)
	return &merged, cs
}

func (departmentStrategy) Create(bc *batchContext, in *departmentInput) (*models.Department, error) {
	dept := &models.Department{Code: in.code, Name: in.name, IsActive: true}
	if in.active != nil {
		dept.IsActive = *in.active
	}
	if in.parent != nil && in.parent.ID != 0 {
		id := in.parent.ID
		dept.ParentID = &id
	}
	if err := bc.resolver.CreateDepartment(dept); err != nil {
		return nil, err
	}
	return dept, nil
}

func (departmentStrategy) Remember(bc *batchContext, d *models.Department) {
	bc.resolver.RememberDepartment(d)
}

func (departmentStrategy) StoredKey(d *models.Department) string { return d.Code }

func (departmentStrategy) Describe(d *models.Department) string {
	return fmt.Sprintf("department %s (%s)", d.Code, d.Name)
}
