package domain

// AuditAction is the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionInsert AuditAction = "INSERT"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionInsert, AuditActionUpdate, AuditActionDelete:
		return true
	}
	return false
}

// UserRole is the role of the acting user as asserted by the auth gateway.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin:
		return true
	}
	return false
}

// ExportFormat is an output format of the service-log export.
type ExportFormat string

const (
	ExportFormatCSV   ExportFormat = "csv"
	ExportFormatExcel ExportFormat = "excel"
)

func (f ExportFormat) String() string { return string(f) }

func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatExcel:
		return true
	}
	return false
}

// Extension returns the file extension used for exported files.
func (f ExportFormat) Extension() string {
	if f == ExportFormatExcel {
		return "xlsx"
	}
	return string(f)
}

// ContentType returns the MIME type of exported files.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatExcel {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Dimension is a grouping axis of the summary report.
type Dimension string

const (
	DimensionClient   Dimension = "client"
	DimensionActivity Dimension = "activity"
	DimensionOutcome  Dimension = "outcome"
)

func (d Dimension) String() string { return string(d) }

func (d Dimension) IsValid() bool {
	switch d {
	case DimensionClient, DimensionActivity, DimensionOutcome:
		return true
	}
	return false
}
