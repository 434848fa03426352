package services

import (
	"context"
	"sync/atomic"
	"testing"

	"hr-compliance-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCodeFromName(t *testing.T) {
	tests := []struct {
		name string
		kind string
		want string
	}{
		{"RAMP", models.SubjectDepartments, "RAMP"},
		{"Ramp Operations", models.SubjectDepartments, "RAMPOPERAT"},
		{"Gudang & Logistik", models.SubjectDepartments, "GUDANGLOGI"},
		{"Pelatihan K3 Dasar", models.SubjectCertificateTypes, "PELATIHANK"},
		{"Équipe Sûreté", models.SubjectDepartments, "EQUIPESURE"},
		{"!!!", models.SubjectDepartments, "DEPT"},
		{"", models.SubjectCertificateTypes, "CERT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFromName(tt.name, tt.kind))
		})
	}
}

func TestCreateDepartmentAddsSuffixOnCollision(t *testing.T) {
	db := newTestDB(t)
	seedDepartment(t, db, "RAMP", "Ramp")
	seedDepartment(t, db, "RAMP1", "Ramp Lama")
	r := NewEntityResolver(context.Background(), db, ResolverOptions{CreateMissing: true})

	dept, err := r.FindOrCreateDepartment("", "Ramp Baru")
	require.NoError(t, err)
	require.NotNil(t, dept)
	assert.Equal(t, "RAMPBARU", dept.Code)

	dept, err = r.FindOrCreateDepartment("", "RAMP!")
	require.NoError(t, err)
	assert.Equal(t, "RAMP2", dept.Code)
	assert.NotZero(t, dept.ID)
	assert.Equal(t, []string{models.SubjectDepartments, models.SubjectDepartments}, r.commitRow())
}

func TestCreateDepartmentRetriesWhenCodeIsTakenConcurrently(t *testing.T) {
	db := newTestDB(t)
	var attempts int32
	failCreate(t, db, "test:steal_code", func(dest any) bool {
		_, ok := dest.(*models.Department)
		return ok && atomic.AddInt32(&attempts, 1) == 1
	}, gorm.ErrDuplicatedKey)
	r := NewEntityResolver(context.Background(), db, ResolverOptions{CreateMissing: true})

	dept, err := r.FindOrCreateDepartment("", "Ramp")
	require.NoError(t, err)
	assert.Equal(t, "RAMP1", dept.Code)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	assert.EqualValues(t, 1, count(t, db, &models.Department{}))
}

func TestFindDepartmentByNameOrCode(t *testing.T) {
	db := newTestDB(t)
	ramp := seedDepartment(t, db, "RMP", "Ramp Handling")
	r := NewEntityResolver(context.Background(), db, ResolverOptions{})

	got, err := r.FindDepartment("", "  ramp   handling ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ramp.ID, got.ID)

	got, err = r.FindDepartment("", "rmp")
	require.NoError(t, err)
	require.NotNil(t, got, "a bare name is also tried as a code")
	assert.Equal(t, ramp.ID, got.ID)

	got, err = r.FindOrCreateDepartment("", "Cargo")
	require.NoError(t, err)
	assert.Nil(t, got, "nothing is created without create_missing")
}

func TestFindEmployeeAcrossIdentifiers(t *testing.T) {
	db := newTestDB(t)
	emp := seedEmployee(t, db, "21608001", "Budi", nil)
	nip := "198001012005011001"
	require.NoError(t, db.Model(emp).Update("nip", nip).Error)
	r := NewEntityResolver(context.Background(), db, ResolverOptions{})

	for _, tc := range []struct{ id, nip string }{
		{"21608001", ""},
		{"", nip},
		{nip, ""},
		{"", "21608001"},
	} {
		got, err := r.FindEmployee(tc.id, tc.nip)
		require.NoError(t, err)
		require.NotNil(t, got, "id=%q nip=%q", tc.id, tc.nip)
		assert.Equal(t, emp.ID, got.ID)
	}

	got, err := r.FindEmployee("00000", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindCertificateTypeFuzzy(t *testing.T) {
	db := newTestDB(t)
	seedCertificateType(t, db, "FOA", "Forklift Operator Advanced Level", 24)
	basic := seedCertificateType(t, db, "FO", "Forklift Operator", 12)
	seedCertificateType(t, db, "F100", "Rate 100% Safety", 0)
	r := NewEntityResolver(context.Background(), db, ResolverOptions{})

	got, err := r.FindCertificateType("", "operator", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.FindCertificateType("", "OPERATOR", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, basic.ID, got.ID, "the shortest matching name wins")

	got, err = r.FindCertificateType("fo", "", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, basic.ID, got.ID)

	got, err = r.FindCertificateType("", "0%", true)
	require.NoError(t, err)
	require.NotNil(t, got, "LIKE wildcards in names are matched literally")
	assert.Equal(t, "F100", got.Code)

	got, err = r.FindCertificateType("", "00_ safety", true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindOrCreateCertificateTypeDefaults(t *testing.T) {
	db := newTestDB(t)
	r := NewEntityResolver(context.Background(), db, ResolverOptions{
		CreateMissing:         true,
		DefaultWarningDays:    45,
		DefaultValidityMonths: 24,
	})

	ct, err := r.FindOrCreateCertificateType("", "Confined Space Entry", CertificateTypeAttrs{})
	require.NoError(t, err)
	assert.Equal(t, "CONFINEDSP", ct.Code)
	assert.True(t, ct.IsRecurrent)
	assert.Equal(t, 45, ct.WarningDays)
	require.NotNil(t, ct.ValidityMonths)
	assert.Equal(t, 24, *ct.ValidityMonths)

	zero, warn := 0, 10
	ct, err = r.FindOrCreateCertificateType("FA", "First Aid", CertificateTypeAttrs{ValidityMonths: &zero, WarningDays: &warn})
	require.NoError(t, err)
	assert.Equal(t, "FA", ct.Code)
	assert.Nil(t, ct.ValidityMonths)
	assert.Equal(t, 10, ct.WarningDays)

	again, err := r.FindOrCreateCertificateType("", "confined space entry", CertificateTypeAttrs{})
	require.NoError(t, err)
	assert.Equal(t, "CONFINEDSP", again.Code)
	assert.EqualValues(t, 2, count(t, db, &models.CertificateType{}))
}

func TestDryRunResolverWritesNothingAndForgetsDiscardedRows(t *testing.T) {
	db := newTestDB(t)
	r := NewEntityResolver(context.Background(), db, ResolverOptions{DryRun: true, CreateMissing: true})

	r.beginRow()
	dept, err := r.FindOrCreateDepartment("", "Ramp")
	require.NoError(t, err)
	assert.Zero(t, dept.ID)
	assert.Equal(t, "RAMP", dept.Code)
	r.discardRow()

	r.beginRow()
	again, err := r.FindOrCreateDepartment("", "Ramp")
	require.NoError(t, err)
	assert.Equal(t, "RAMP", again.Code, "the discarded reservation is released")
	assert.Equal(t, []string{models.SubjectDepartments}, r.commitRow())

	cached, err := r.FindDepartment("RAMP", "")
	require.NoError(t, err)
	assert.Same(t, again, cached)
	assert.EqualValues(t, 0, count(t, db, &models.Department{}))
}
