package services

// Canonical field names produced by the RowNormalizer.
const (
	FieldName                = "name"
	FieldCode                = "code"
	FieldDepartment          = "department"
	FieldDepartmentCode      = "department_code"
	FieldParentDepartment    = "parent_department"
	FieldPosition            = "position"
	FieldEmployeeID          = "employee_id"
	FieldNIP                 = "nip"
	FieldEmail               = "email"
	FieldStatus              = "status"
	FieldActive              = "active"
	FieldDescription         = "description"
	FieldCategory            = "category"
	FieldValidityMonths      = "validity_months"
	FieldWarningDays         = "warning_days"
	FieldMandatory           = "mandatory"
	FieldRecurrent           = "recurrent"
	FieldCertificateType     = "certificate_type"
	FieldCertificateTypeCode = "certificate_type_code"
	FieldCertificateNumber   = "certificate_number"
	FieldProvider            = "provider"
	FieldIssueDate           = "issue_date"
	FieldCompletionDate      = "completion_date"
	FieldExpiryDate          = "expiry_date"
	FieldNotes               = "notes"
	FieldEmployeeName        = "employee_name"
)

// headerSynonyms maps each canonical field to the header spellings seen in
// uploads (English, Indonesian, and a few legacy export names). Entries are
// normalized with NormalizeHeader when the lookup table is built, so they can
// be written the way they appear in spreadsheets.
var headerSynonyms = map[string][]string{
	FieldName: {
		"name", "full name", "nama", "nama lengkap", "nama karyawan", "nama pegawai",
	},
	FieldCode: {
		"code", "kode",
	},
	FieldDepartment: {
		"department", "departemen", "dept", "bagian", "divisi", "division", "unit", "unit kerja",
		"section", "seksi", "department name", "nama departemen", "nama bagian", "nama divisi",
	},
	FieldDepartmentCode: {
		"department code", "dept code", "kode departemen", "kode bagian", "kode divisi", "kode unit",
	},
	FieldParentDepartment: {
		"parent", "parent department", "parent code", "induk", "departemen induk", "bagian induk",
	},
	FieldPosition: {
		"position", "jabatan", "job title", "title", "posisi", "role",
	},
	FieldEmployeeID: {
		"employee id", "employee_id", "employee number", "emp id", "emp no", "id karyawan",
		"no karyawan", "nomor karyawan", "nik", "staff id", "badge", "badge number",
	},
	FieldNIP: {
		"nip", "nomor induk pegawai", "no induk", "nopeg", "no pegawai", "legacy id",
	},
	FieldEmail: {
		"email", "e-mail", "email address", "surel",
	},
	FieldStatus: {
		"status", "employment status", "status karyawan", "keadaan",
	},
	FieldActive: {
		"active", "aktif", "is active", "enabled",
	},
	FieldDescription: {
		"description", "deskripsi", "keterangan jenis", "uraian",
	},
	FieldCategory: {
		"category", "kategori", "group", "kelompok",
	},
	FieldValidityMonths: {
		"validity", "validity months", "validity period", "valid months", "masa berlaku",
		"masa berlaku bulan", "berlaku bulan",
	},
	FieldWarningDays: {
		"warning days", "warning period", "reminder days", "hari peringatan", "peringatan hari",
	},
	FieldMandatory: {
		"mandatory", "wajib", "required", "is mandatory",
	},
	FieldRecurrent: {
		"recurrent", "recurring", "berulang", "refresher", "is recurrent",
	},
	FieldCertificateType: {
		"certificate type", "training", "training name", "training type", "course", "pelatihan",
		"nama pelatihan", "jenis pelatihan", "sertifikat", "nama sertifikat", "jenis sertifikat",
		"certificate", "certification",
	},
	FieldCertificateTypeCode: {
		"certificate type code", "type code", "training code", "course code", "kode jenis",
		"kode pelatihan", "kode sertifikat",
	},
	FieldCertificateNumber: {
		"certificate number", "certificate no", "cert no", "no sertifikat", "nomor sertifikat",
		"certificate id",
	},
	FieldProvider: {
		"provider", "issuer", "issued by", "penyelenggara", "lembaga", "vendor",
	},
	FieldIssueDate: {
		"issue date", "issued", "date issued", "training date", "tanggal pelatihan",
		"tanggal terbit", "tgl terbit", "tanggal sertifikat", "start date", "tanggal mulai",
	},
	FieldCompletionDate: {
		"completion date", "completed", "date completed", "tanggal selesai", "tgl selesai",
		"end date", "finish date",
	},
	FieldExpiryDate: {
		"expiry date", "expiry", "expiration", "expiration date", "expired", "valid until",
		"berlaku sampai", "berlaku hingga", "tanggal kadaluarsa", "tgl kadaluarsa", "kadaluarsa",
		"tanggal expired",
	},
	FieldNotes: {
		"notes", "note", "remarks", "catatan", "keterangan",
	},
	FieldEmployeeName: {
		"employee name", "participant", "peserta", "nama peserta",
	},
}
