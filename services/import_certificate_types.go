package services

import (
	"fmt"

	"hr-compliance-api/models"
)

type certificateTypeInput struct {
	code           string
	name           string
	nameGiven      bool
	category       string
	validityMonths *int
	warningDays    *int
	mandatory      *bool
	recurrent      *bool
	active         *bool
}

type certificateTypeStrategy struct{}

func (certificateTypeStrategy) Kind() string { return models.SubjectCertificateTypes }

func (certificateTypeStrategy) EmptyCheckFields() []string {
	return []string{FieldCode, FieldCertificateTypeCode, FieldName, FieldCertificateType}
}

func (certificateTypeStrategy) Normalize(row CanonicalRow) {
	if !row.Has(FieldCode) && row.Has(FieldCertificateTypeCode) {
		row[FieldCode] = row[FieldCertificateTypeCode]
	}
	if !row.Has(FieldName) && row.Has(FieldCertificateType) {
		row[FieldName] = row[FieldCertificateType]
	}
	if row.Has(FieldCode) {
		row[FieldCode] = NormalizeCode(row.String(FieldCode))
	}
}

func (certificateTypeStrategy) Validate(row CanonicalRow) error {
	if !row.Has(FieldName) && !row.Has(FieldCode) {
		return &ValidationError{Fields: []string{FieldName}}
	}
	return nil
}

func (certificateTypeStrategy) NaturalKey(row CanonicalRow) string {
	if code := row.String(FieldCode); code != "" {
		return "code:" + code
	}
	return "name:" + foldName(row.String(FieldName))
}

func (certificateTypeStrategy) Resolve(bc *batchContext, row CanonicalRow) (*certificateTypeInput, error) {
	in := &certificateTypeInput{
		code:      row.String(FieldCode),
		name:      row.String(FieldName),
		nameGiven: row.Has(FieldName),
		category:  row.String(FieldCategory),
	}
	if in.name == "" {
		in.name = in.code
	}
	in.validityMonths = nonNegativeInt(bc, row, FieldValidityMonths)
	in.warningDays = nonNegativeInt(bc, row, FieldWarningDays)
	in.mandatory = optionalBool(row, FieldMandatory)
	in.recurrent = optionalBool(row, FieldRecurrent)
	in.active = optionalBool(row, FieldActive)
	return in, nil
}

func (certificateTypeStrategy) FindExisting(bc *batchContext, in *certificateTypeInput) (*models.CertificateType, error) {
	if in.code != "" {
		return bc.resolver.FindCertificateType(in.code, "", false)
	}
	return bc.resolver.FindCertificateType("", in.name, false)
}

func (certificateTypeStrategy) Diff(bc *batchContext, existing *models.CertificateType, in *certificateTypeInput) (*models.CertificateType, *changeSet) {
	merged := *existing
	cs := &changeSet{}
	if in.nameGiven {
		cs.setString("name", &merged.Name, in.name)
	}
	cs.setString("category", &merged.Category, in.category)
	if in.validityMonths != nil {
		if *in.validityMonths == 0 {
			if merged.ValidityMonths != nil {
				cs.add("validity_months", *merged.ValidityMonths, nil)
				merged.ValidityMonths = nil
			}
		} else {
			cs.setIntPtr("validity_months", &merged.ValidityMonths, in.validityMonths)
		}
	}
	cs.setInt("warning_days", &merged.WarningDays, in.warningDays)
	cs.setBool("is_mandatory", &merged.IsMandatory, in.mandatory)
	cs.setBool("is_recurrent", &merged.IsRecurrent, in.recurrent)
	active := in.active
	if active == nil && !existing.IsActive && bc.opts.SyncMode == SyncModeReplace {
		t := true
		active = &t
	}
	cs.setBool("is_active", &merged.IsActive, active)
	return &merged, cs
}

func (certificateTypeStrategy) Create(bc *batchContext, in *certificateTypeInput) (*models.CertificateType, error) {
	t := &models.CertificateType{
		Code:        in.code,
		Name:        in.name,
		Category:    in.category,
		WarningDays: bc.engine.DefaultWarningDays,
		IsActive:    true,
	}
	switch {
	case in.validityMonths != nil && *in.validityMonths > 0:
		v := *in.validityMonths
		t.ValidityMonths = &v
	case in.validityMonths == nil && bc.resolver.opts.DefaultValidityMonths > 0:
		v := bc.resolver.opts.DefaultValidityMonths
		t.ValidityMonths = &v
	}
	if in.warningDays != nil {
		t.WarningDays = *in.warningDays
	}
	if in.mandatory != nil {
		t.IsMandatory = *in.mandatory
	}
	if in.recurrent != nil {
		t.IsRecurrent = *in.recurrent
	} else {
		t.IsRecurrent = t.ValidityMonths != nil
	}
	if in.active != nil {
		t.IsActive = *in.active
	}
	if err := bc.resolver.CreateCertificateType(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (certificateTypeStrategy) Remember(bc *batchContext, t *models.CertificateType) {
	bc.resolver.RememberCertificateType(t)
}

func (certificateTypeStrategy) StoredKey(t *models.CertificateType) string { return t.Code }

func (certificateTypeStrategy) Describe(t *models.CertificateType) string {
	return fmt.Sprintf("certificate type %s (%s)", t.Code, t.Name)
}

func nonNegativeInt(bc *batchContext, row CanonicalRow, field string) *int {
	if !row.Has(field) {
		return nil
	}
	n, ok := row.Int(field)
	if !ok || n < 0 {
		bc.warn("%s: invalid number %q ignored", field, row.String(field))
		return nil
	}
	return &n
}

func optionalBool(row CanonicalRow, field string) *bool {
	if v, ok := row.Bool(field); ok {
		return &v
	}
	return nil
}
