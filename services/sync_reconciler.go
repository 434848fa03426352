package services

import (
	"hr-compliance-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncReconciler deactivates or deletes stored entities that a replace-mode
// upload no longer lists. Training records are never reconciled.
type SyncReconciler struct{}

func NewSyncReconciler() *SyncReconciler { return &SyncReconciler{} }

// reconcileCandidate is an active stored entity of a reconcilable kind.
type reconcileCandidate struct {
	id   uint
	key  string
	name string
}

// Reconciles reports whether entities of kind take part in reconciliation.
func (SyncReconciler) Reconciles(kind string) bool {
	switch kind {
	case models.SubjectDepartments, models.SubjectEmployees, models.SubjectCertificateTypes:
		return true
	}
	return false
}

// Reconcile runs inside the batch transaction once every sheet has been
// processed. Entities listed by the kind's own sheets are kept, and so are
// entities that rows of any sheet referenced. An empty listed set is treated
// as a mistake and skipped with a warning rather than wiping the whole table.
func (r *SyncReconciler) Reconcile(bc *batchContext, kind string, listed, referenced map[string]struct{}) error {
	if !r.Reconciles(kind) {
		return nil
	}
	if len(listed) == 0 {
		bc.report.addWarning("sheet %q: no %s were matched, reconciliation skipped", bc.sheet.Name, kind)
		return nil
	}
	candidates, err := r.activeCandidates(bc.db, kind)
	if err != nil {
		return bc.fatal(persistenceErr(err, "list "+kind+" for reconciliation"))
	}

	action := ActionDeleted
	if bc.opts.SoftDelete {
		action = ActionDeactivated
	}
	for _, c := range candidates {
		if _, ok := listed[c.key]; ok {
			continue
		}
		if _, ok := referenced[c.key]; ok {
			continue
		}
		if !bc.opts.DryRun {
			if err := r.retire(bc.db, kind, c.id, bc.opts.SoftDelete); err != nil {
				return bc.fatal(persistenceErr(err, "reconcile "+kind+" "+c.key))
			}
		}
		bc.report.appendReconcile(bc.sheet, ReconcileAction{
			Sheet:  bc.sheet.Name,
			Entity: kind,
			Key:    c.key,
			Name:   c.name,
			Action: action,
			Reason: ReasonNotInUpload,
		})
	}
	bc.log.WithFields(logrus.Fields{"sheet": bc.sheet.Name, "kind": kind}).Debug("reconciliation finished")
	return nil
}

func (r *SyncReconciler) activeCandidates(db *gorm.DB, kind string) ([]reconcileCandidate, error) {
	var out []reconcileCandidate
	switch kind {
	case models.SubjectDepartments:
		var rows []models.Department
		if err := db.Where("is_active = ?", true).Order("id").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, d := range rows {
			out = append(out, reconcileCandidate{id: d.ID, key: d.Code, name: d.Name})
		}
	case models.SubjectEmployees:
		var rows []models.Employee
		if err := db.Where("status = ?", models.EmployeeStatusActive).Order("id").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, e := range rows {
			out = append(out, reconcileCandidate{id: e.ID, key: e.EmployeeID, name: e.Name})
		}
	case models.SubjectCertificateTypes:
		var rows []models.CertificateType
		if err := db.Where("is_active = ?", true).Order("id").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, t := range rows {
			out = append(out, reconcileCandidate{id: t.ID, key: t.Code, name: t.Name})
		}
	}
	return out, nil
}

// retire soft- or hard-deletes one entity. Hard deletes unlink or remove
// dependents first so no dangling references remain.
func (r *SyncReconciler) retire(db *gorm.DB, kind string, id uint, soft bool) error {
	switch kind {
	case models.SubjectDepartments:
		if soft {
			return db.Model(&models.Department{}).Where("id = ?", id).Update("is_active", false).Error
		}
		if err := db.Model(&models.Employee{}).Where("department_id = ?", id).Update("department_id", nil).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Department{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return err
		}
		return db.Delete(&models.Department{}, id).Error
	case models.SubjectEmployees:
		if soft {
			return db.Model(&models.Employee{}).Where("id = ?", id).Update("status", models.EmployeeStatusInactive).Error
		}
		if err := db.Where("employee_id = ?", id).Delete(&models.CertificateRecord{}).Error; err != nil {
			return err
		}
		return db.Delete(&models.Employee{}, id).Error
	case models.SubjectCertificateTypes:
		if soft {
			return db.Model(&models.CertificateType{}).Where("id = ?", id).Update("is_active", false).Error
		}
		if err := db.Where("certificate_type_id = ?", id).Delete(&models.CertificateRecord{}).Error; err != nil {
			return err
		}
		return db.Delete(&models.CertificateType{}, id).Error
	}
	return nil
}
