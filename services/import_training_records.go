package services

import (
	"fmt"
	"strings"
	"time"

	"hr-compliance-api/models"
)

type trainingRecordInput struct {
	record         models.CertificateRecord
	employee       *models.Employee
	certType       *models.CertificateType
	explicitExpiry bool
	providerGiven  bool
}

// trainingRecordStrategy imports certificate records. Employees are never
// created from this sheet; certificate types may be.
type trainingRecordStrategy struct{}

func (trainingRecordStrategy) Kind() string { return models.SubjectTrainingRecords }

func (trainingRecordStrategy) EmptyCheckFields() []string {
	return []string{
		FieldEmployeeID, FieldNIP, FieldCertificateType, FieldCertificateTypeCode,
		FieldCertificateNumber, FieldIssueDate, FieldCompletionDate,
	}
}

func (trainingRecordStrategy) Normalize(row CanonicalRow) {
	if !row.Has(FieldCertificateTypeCode) && row.Has(FieldCode) {
		row[FieldCertificateTypeCode] = row[FieldCode]
	}
	if row.Has(FieldCertificateTypeCode) {
		row[FieldCertificateTypeCode] = NormalizeCode(row.String(FieldCertificateTypeCode))
	}
	if row.Has(FieldCertificateNumber) {
		row[FieldCertificateNumber] = strings.ToUpper(row.String(FieldCertificateNumber))
	}
}

func (trainingRecordStrategy) Validate(row CanonicalRow) error {
	var missing []string
	if !row.Has(FieldEmployeeID) && !row.Has(FieldNIP) {
		missing = append(missing, FieldEmployeeID)
	}
	if !row.Has(FieldCertificateType) && !row.Has(FieldCertificateTypeCode) {
		missing = append(missing, FieldCertificateType)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (trainingRecordStrategy) NaturalKey(row CanonicalRow) string {
	if number := row.String(FieldCertificateNumber); number != "" {
		return "number:" + number
	}
	employee := row.String(FieldEmployeeID)
	if employee == "" {
		employee = row.String(FieldNIP)
	}
	certType := row.String(FieldCertificateTypeCode)
	if certType == "" {
		certType = foldName(row.String(FieldCertificateType))
	}
	issued := row.String(FieldIssueDate)
	if t, err := ParseDate(row[FieldIssueDate]); err == nil && t != nil {
		issued = t.Format(isoDate)
	}
	return fmt.Sprintf("employee:%s|type:%s|issued:%s", employee, certType, issued)
}

func (trainingRecordStrategy) Resolve(bc *batchContext, row CanonicalRow) (*trainingRecordInput, error) {
	employeeID, nip := row.String(FieldEmployeeID), row.String(FieldNIP)
	emp, err := bc.resolver.FindEmployee(employeeID, nip)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		key := employeeID
		if key == "" {
			key = nip
		}
		return nil, &ResolutionError{Entity: "employee", Key: key}
	}

	code, name := row.String(FieldCertificateTypeCode), row.String(FieldCertificateType)
	attrs := CertificateTypeAttrs{
		ValidityMonths: nonNegativeInt(bc, row, FieldValidityMonths),
		WarningDays:    nonNegativeInt(bc, row, FieldWarningDays),
	}
	certType, err := bc.resolver.FindOrCreateCertificateType(code, name, attrs)
	if err != nil {
		return nil, err
	}
	if certType == nil {
		key := code
		if key == "" {
			key = name
		}
		return nil, &ResolutionError{Entity: "certificate type", Key: key}
	}

	in := &trainingRecordInput{employee: emp, certType: certType}
	rec := &in.record
	rec.EmployeeID = emp.ID
	rec.CertificateTypeID = certType.ID
	rec.IssueDate = bc.date(row, FieldIssueDate)
	rec.CompletionDate = bc.date(row, FieldCompletionDate)
	rec.ExpiryDate = bc.date(row, FieldExpiryDate)
	rec.Notes = row.String(FieldNotes)
	rec.Provider = strings.ToUpper(row.String(FieldProvider))
	in.explicitExpiry = rec.ExpiryDate != nil

	if number := row.String(FieldCertificateNumber); number != "" {
		rec.CertificateNumber = &number
		if parsed, ok := ParseCertificateNumber(number); ok && rec.Provider == "" {
			rec.Provider = parsed.Provider
		}
	}
	in.providerGiven = rec.Provider != ""
	if rec.Provider == "" {
		rec.Provider = bc.defaultProvider
	}

	if issued := EffectiveIssueDate(rec); issued != nil && rec.ExpiryDate != nil && rec.ExpiryDate.Before(*issued) {
		bc.warn("expiry date %s is before issue date %s", rec.ExpiryDate.Format(isoDate), issued.Format(isoDate))
	}
	bc.engine.Apply(rec, certType, bc.now)
	if given := strings.ToLower(row.String(FieldStatus)); given != "" && given != rec.Status {
		bc.warn("status %q ignored, computed %q", given, rec.Status)
	}
	return in, nil
}

func (trainingRecordStrategy) FindExisting(bc *batchContext, in *trainingRecordInput) (*models.CertificateRecord, error) {
	rec := in.record
	if rec.CertificateNumber != nil {
		var found []models.CertificateRecord
		if err := bc.db.Where("certificate_number = ?", *rec.CertificateNumber).Limit(1).Find(&found).Error; err != nil {
			return nil, persistenceErr(err, "find training record")
		}
		if len(found) > 0 {
			stored := &found[0]
			switch {
			case stored.EmployeeID != rec.EmployeeID:
				return nil, &ConflictError{Entity: "certificate number", Key: *rec.CertificateNumber, Reason: "is already issued to another employee"}
			case stored.CertificateTypeID != rec.CertificateTypeID:
				return nil, &ConflictError{Entity: "certificate number", Key: *rec.CertificateNumber, Reason: "is already recorded for another certificate type"}
			}
			return stored, nil
		}
	}
	if rec.EmployeeID == 0 || rec.CertificateTypeID == 0 {
		return nil, nil
	}
	var candidates []models.CertificateRecord
	err := bc.db.Where("employee_id = ? AND certificate_type_id = ?", rec.EmployeeID, rec.CertificateTypeID).
		Order("id").Find(&candidates).Error
	if err != nil {
		return nil, persistenceErr(err, "find training record")
	}
	for i := range candidates {
		c := &candidates[i]
		if rec.CertificateNumber != nil && c.CertificateNumber != nil {
			continue
		}
		if sameDate(c.IssueDate, rec.IssueDate) && (rec.IssueDate != nil || sameDate(c.CompletionDate, rec.CompletionDate)) {
			return c, nil
		}
	}
	return nil, nil
}

func (trainingRecordStrategy) Diff(bc *batchContext, existing *models.CertificateRecord, in *trainingRecordInput) (*models.CertificateRecord, *changeSet) {
	merged := *existing
	merged.Employee, merged.CertificateType = nil, nil
	cs := &changeSet{}
	rec := in.record
	// A stored number is an identity; it is only ever filled in.
	if existing.CertificateNumber == nil {
		cs.setStringPtr("certificate_number", &merged.CertificateNumber, rec.CertificateNumber)
	}
	cs.setDate("issue_date", &merged.IssueDate, rec.IssueDate)
	cs.setDate("completion_date", &merged.CompletionDate, rec.CompletionDate)
	datesMoved := !cs.Empty()
	if in.explicitExpiry || existing.ExpiryDate == nil || datesMoved {
		cs.setDate("expiry_date", &merged.ExpiryDate, rec.ExpiryDate)
	}
	if in.providerGiven || existing.Provider == "" {
		cs.setString("provider", &merged.Provider, rec.Provider)
	}
	cs.setString("notes", &merged.Notes, rec.Notes)

	status, compliance := merged.Status, merged.ComplianceStatus
	bc.engine.Apply(&merged, in.certType, bc.now)
	if merged.Status != status {
		cs.add("status", status, merged.Status)
	}
	if merged.ComplianceStatus != compliance {
		cs.add("compliance_status", compliance, merged.ComplianceStatus)
	}
	return &merged, cs
}

func (trainingRecordStrategy) Create(bc *batchContext, in *trainingRecordInput) (*models.CertificateRecord, error) {
	rec := in.record
	provider := strings.ToUpper(rec.Provider)
	if rec.CertificateNumber == nil {
		if issued := EffectiveIssueDate(&rec); issued != nil {
			number, err := bc.nextCertificateNumber(provider, *issued)
			if err != nil {
				return nil, err
			}
			rec.CertificateNumber = &number
		}
	} else if parsed, ok := ParseCertificateNumber(*rec.CertificateNumber); ok {
		bc.reserveSequence(parsed.Provider, parsed.Sequence)
	}
	if err := bc.insert(&rec, "training record"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// prepareSheet reserves every explicit number on the sheet so numbers
// generated for earlier rows cannot take them.
func (trainingRecordStrategy) prepareSheet(bc *batchContext, rows []CanonicalRow) {
	for _, row := range rows {
		if parsed, ok := ParseCertificateNumber(row.String(FieldCertificateNumber)); ok {
			bc.reserveSequence(parsed.Provider, parsed.Sequence)
		}
	}
}

func (trainingRecordStrategy) Remember(*batchContext, *models.CertificateRecord) {}

func (trainingRecordStrategy) StoredKey(r *models.CertificateRecord) string {
	if r.CertificateNumber != nil {
		return *r.CertificateNumber
	}
	return fmt.Sprintf("#%d", r.ID)
}

func (trainingRecordStrategy) Describe(r *models.CertificateRecord) string {
	number := "(unnumbered)"
	if r.CertificateNumber != nil {
		number = *r.CertificateNumber
	}
	return fmt.Sprintf("training record %s [%s]", number, r.Status)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameDay(*a, *b)
}
