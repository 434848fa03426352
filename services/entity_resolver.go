package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"hr-compliance-api/models"

	"gorm.io/gorm"
)

const (
	maxCodeLength    = 32
	codePrefixLength = 10
	maxCodeAttempts  = 20
	maxCodeSuffix    = 1000
)

// ResolverOptions control whether missing references may be created.
type ResolverOptions struct {
	DryRun                bool
	CreateMissing         bool
	DefaultWarningDays    int
	DefaultValidityMonths int
}

// CertificateTypeAttrs are optional values used when a certificate type is
// created on the fly from a training record row.
type CertificateTypeAttrs struct {
	ValidityMonths *int
	WarningDays    *int
}

// EntityResolver finds or creates referenced entities for one batch. Lookups
// are cached for the lifetime of the batch; in a dry run, would-be creations
// are cached as placeholders with ID 0 and nothing is written.
type EntityResolver struct {
	ctx  context.Context
	db   *gorm.DB
	opts ResolverOptions

	departments map[string]*models.Department
	employees   map[string]*models.Employee
	certTypes   map[string]*models.CertificateType
	reserved    map[string]struct{}

	undo    []func()
	created []string
	touched []entityRef
}

// entityRef names a stored entity by kind and natural key.
type entityRef struct {
	kind string
	key  string
}

func NewEntityResolver(ctx context.Context, db *gorm.DB, opts ResolverOptions) *EntityResolver {
	return &EntityResolver{
		ctx:         ctx,
		db:          db,
		opts:        opts,
		departments: make(map[string]*models.Department),
		employees:   make(map[string]*models.Employee),
		certTypes:   make(map[string]*models.CertificateType),
		reserved:    make(map[string]struct{}),
	}
}

// beginRow starts journaling cache changes so a failed row can be forgotten.
func (r *EntityResolver) beginRow() {
	r.undo = r.undo[:0]
	r.created = r.created[:0]
	r.touched = r.touched[:0]
}

// discardRow drops everything cached or created since beginRow.
func (r *EntityResolver) discardRow() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i]()
	}
	r.undo = r.undo[:0]
	r.created = r.created[:0]
	r.touched = r.touched[:0]
}

// touchedRow lists the entities the current row resolved, found or created.
func (r *EntityResolver) touchedRow() []entityRef {
	return append([]entityRef(nil), r.touched...)
}

func (r *EntityResolver) touch(kind, key string) {
	if key != "" {
		r.touched = append(r.touched, entityRef{kind: kind, key: key})
	}
}

// commitRow returns the entity kinds created as side effects of the row.
func (r *EntityResolver) commitRow() []string {
	out := append([]string(nil), r.created...)
	r.undo = r.undo[:0]
	r.created = r.created[:0]
	r.touched = r.touched[:0]
	return out
}

func cachePut[T any](r *EntityResolver, m map[string]*T, key string, v *T) {
	if _, ok := m[key]; !ok {
		r.undo = append(r.undo, func() { delete(m, key) })
	}
	m[key] = v
}

func (r *EntityResolver) reserve(kind, code string) {
	key := kind + ":" + code
	if _, ok := r.reserved[key]; ok {
		return
	}
	r.reserved[key] = struct{}{}
	r.undo = append(r.undo, func() { delete(r.reserved, key) })
}

func (r *EntityResolver) isReserved(kind, code string) bool {
	_, ok := r.reserved[kind+":"+code]
	return ok
}

// ---- departments ----

// FindDepartment matches by code when one is given, otherwise by exact
// (case-insensitive) name. A bare name that matches no department is also
// tried as a code.
func (r *EntityResolver) FindDepartment(code, name string) (*models.Department, error) {
	d, err := r.findDepartment(code, name)
	if d != nil {
		r.touch(models.SubjectDepartments, d.Code)
	}
	return d, err
}

func (r *EntityResolver) findDepartment(code, name string) (*models.Department, error) {
	if code = NormalizeCode(code); code != "" {
		return r.departmentBy("code:"+code, "code = ?", code)
	}
	folded := foldName(name)
	if folded == "" {
		return nil, nil
	}
	d, err := r.departmentBy("name:"+folded, "LOWER(name) = ?", folded)
	if err != nil || d != nil {
		return d, err
	}
	if c := NormalizeCode(name); c != "" && len(c) <= maxCodeLength {
		return r.departmentBy("code:"+c, "code = ?", c)
	}
	return nil, nil
}

// FindOrCreateDepartment resolves a department reference, creating it when
// CreateMissing is set. It returns nil without error when the department does
// not exist and may not be created.
func (r *EntityResolver) FindOrCreateDepartment(code, name string) (*models.Department, error) {
	d, err := r.FindDepartment(code, name)
	if err != nil || d != nil {
		return d, err
	}
	if !r.opts.CreateMissing {
		return nil, nil
	}
	code = NormalizeCode(code)
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}
	dept := &models.Department{Code: code, Name: name, IsActive: true}
	if err := r.CreateDepartment(dept); err != nil {
		return nil, err
	}
	r.created = append(r.created, models.SubjectDepartments)
	r.touch(models.SubjectDepartments, dept.Code)
	return dept, nil
}

// CreateDepartment inserts dept, synthesizing a unique code from its name when
// Code is empty.
func (r *EntityResolver) CreateDepartment(dept *models.Department) error {
	if err := r.insertWithCode(models.SubjectDepartments, "departments", dept, &dept.Code, dept.Name); err != nil {
		return err
	}
	r.RememberDepartment(dept)
	return nil
}

func (r *EntityResolver) RememberDepartment(d *models.Department) {
	cachePut(r, r.departments, "code:"+d.Code, d)
	if n := foldName(d.Name); n != "" {
		cachePut(r, r.departments, "name:"+n, d)
	}
}

func (r *EntityResolver) departmentBy(key, query string, arg any) (*models.Department, error) {
	if d, ok := r.departments[key]; ok {
		return d, nil
	}
	var d models.Department
	err := r.db.Where(query, arg).Order("id").Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr(err, "find department")
	}
	r.RememberDepartment(&d)
	cachePut(r, r.departments, key, &d)
	return &d, nil
}

// ---- employees ----

// FindEmployee matches on employee_id first, then nip, and checks each value
// against both columns since uploads mix the two identifiers.
func (r *EntityResolver) FindEmployee(employeeID, nip string) (*models.Employee, error) {
	employeeID = strings.TrimSpace(employeeID)
	nip = strings.TrimSpace(nip)
	lookups := []struct{ prefix, column, value string }{
		{"id:", "employee_id", employeeID},
		{"nip:", "nip", nip},
		{"nip:", "nip", employeeID},
		{"id:", "employee_id", nip},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		key := l.prefix + l.value
		if e, ok := r.employees[key]; ok {
			r.touch(models.SubjectEmployees, e.EmployeeID)
			return e, nil
		}
		var e models.Employee
		err := r.db.Where(l.column+" = ?", l.value).Take(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, persistenceErr(err, "find employee")
		}
		r.RememberEmployee(&e)
		r.touch(models.SubjectEmployees, e.EmployeeID)
		return &e, nil
	}
	return nil, nil
}

func (r *EntityResolver) RememberEmployee(e *models.Employee) {
	cachePut(r, r.employees, "id:"+e.EmployeeID, e)
	if e.NIP != nil && *e.NIP != "" {
		cachePut(r, r.employees, "nip:"+*e.NIP, e)
	}
}

// ---- certificate types ----

// FindCertificateType matches by code, then exact name. With fuzzy set a
// case-insensitive substring match on the name is tried last, preferring the
// shortest matching name.
func (r *EntityResolver) FindCertificateType(code, name string, fuzzy bool) (*models.CertificateType, error) {
	t, err := r.findCertificateType(code, name, fuzzy)
	if t != nil {
		r.touch(models.SubjectCertificateTypes, t.Code)
	}
	return t, err
}

func (r *EntityResolver) findCertificateType(code, name string, fuzzy bool) (*models.CertificateType, error) {
	if code = NormalizeCode(code); code != "" {
		return r.certTypeBy("code:"+code, "code = ?", code)
	}
	folded := foldName(name)
	if folded == "" {
		return nil, nil
	}
	t, err := r.certTypeBy("name:"+folded, "LOWER(name) = ?", folded)
	if err != nil || t != nil {
		return t, err
	}
	if c := NormalizeCode(name); c != "" && len(c) <= maxCodeLength {
		if t, err = r.certTypeBy("code:"+c, "code = ?", c); err != nil || t != nil {
			return t, err
		}
	}
	if !fuzzy {
		return nil, nil
	}
	var found models.CertificateType
	err = r.db.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(folded)+"%").
		Order("LENGTH(name)").Order("id").Take(&found).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr(err, "find certificate type")
	}
	r.RememberCertificateType(&found)
	cachePut(r, r.certTypes, "name:"+folded, &found)
	return &found, nil
}

// FindOrCreateCertificateType resolves a certificate type reference from a
// training record. Types created here are recurrent by convention.
func (r *EntityResolver) FindOrCreateCertificateType(code, name string, attrs CertificateTypeAttrs) (*models.CertificateType, error) {
	t, err := r.FindCertificateType(code, name, true)
	if err != nil || t != nil {
		return t, err
	}
	if !r.opts.CreateMissing {
		return nil, nil
	}
	code = NormalizeCode(code)
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}
	certType := &models.CertificateType{
		Code:        code,
		Name:        name,
		WarningDays: r.opts.DefaultWarningDays,
		IsRecurrent: true,
		IsActive:    true,
	}
	if attrs.ValidityMonths != nil {
		if *attrs.ValidityMonths > 0 {
			v := *attrs.ValidityMonths
			certType.ValidityMonths = &v
		}
	} else if r.opts.DefaultValidityMonths > 0 {
		v := r.opts.DefaultValidityMonths
		certType.ValidityMonths = &v
	}
	if attrs.WarningDays != nil && *attrs.WarningDays >= 0 {
		certType.WarningDays = *attrs.WarningDays
	}
	if err := r.CreateCertificateType(certType); err != nil {
		return nil, err
	}
	r.created = append(r.created, models.SubjectCertificateTypes)
	r.touch(models.SubjectCertificateTypes, certType.Code)
	return certType, nil
}

func (r *EntityResolver) CreateCertificateType(t *models.CertificateType) error {
	if err := r.insertWithCode(models.SubjectCertificateTypes, "certificate_types", t, &t.Code, t.Name); err != nil {
		return err
	}
	r.RememberCertificateType(t)
	return nil
}

func (r *EntityResolver) RememberCertificateType(t *models.CertificateType) {
	cachePut(r, r.certTypes, "code:"+t.Code, t)
	if n := foldName(t.Name); n != "" {
		cachePut(r, r.certTypes, "name:"+n, t)
	}
}

func (r *EntityResolver) certTypeBy(key, query string, arg any) (*models.CertificateType, error) {
	if t, ok := r.certTypes[key]; ok {
		return t, nil
	}
	var t models.CertificateType
	err := r.db.Where(query, arg).Order("id").Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr(err, "find certificate type")
	}
	r.RememberCertificateType(&t)
	cachePut(r, r.certTypes, key, &t)
	return &t, nil
}

// ---- code allocation ----

// insertWithCode inserts value. An explicit code is used as-is; an empty code
// is synthesized from base and retried with the next suffix when a concurrent
// writer takes it first. Each attempt runs under its own savepoint.
func (r *EntityResolver) insertWithCode(kind, table string, value any, code *string, base string) error {
	if *code != "" {
		r.reserve(kind, *code)
		if r.opts.DryRun {
			return nil
		}
		return persistenceErr(r.db.Create(value).Error, "create "+kind)
	}
	prefix := CodeFromName(base, kind)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := r.nextFreeCode(kind, table, prefix)
		if err != nil {
			return err
		}
		*code = candidate
		r.reserve(kind, candidate)
		if r.opts.DryRun {
			return nil
		}
		err = r.db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(value).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return persistenceErr(err, "create "+kind)
		}
	}
	*code = ""
	return persistenceErr(fmt.Errorf("no free code for %q after %d attempts", prefix, maxCodeAttempts), "allocate "+kind+" code")
}

func (r *EntityResolver) nextFreeCode(kind, table, prefix string) (string, error) {
	for n := 0; n < maxCodeSuffix; n++ {
		candidate := prefix
		if n > 0 {
			candidate = withCodeSuffix(prefix, n)
		}
		if r.isReserved(kind, candidate) {
			continue
		}
		var count int64
		if err := r.db.Table(table).Where("code = ?", candidate).Count(&count).Error; err != nil {
			return "", persistenceErr(err, "check "+kind+" code")
		}
		if count == 0 {
			return candidate, nil
		}
		r.reserve(kind, candidate)
	}
	return "", persistenceErr(fmt.Errorf("code space for %q exhausted", prefix), "allocate "+kind+" code")
}

// CodeFromName derives a code prefix: the alphanumeric characters of the
// name, uppercased and cut to ten characters.
func CodeFromName(name, kind string) string {
	var b strings.Builder
	for _, r := range NormalizeHeader(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == codePrefixLength {
				break
			}
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	if kind == models.SubjectCertificateTypes {
		return "CERT"
	}
	return "DEPT"
}

func withCodeSuffix(prefix string, n int) string {
	suffix := strconv.Itoa(n)
	if len(prefix)+len(suffix) > maxCodeLength {
		prefix = prefix[:maxCodeLength-len(suffix)]
	}
	return prefix + suffix
}

// NormalizeCode uppercases a code and strips surrounding space.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func foldName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
