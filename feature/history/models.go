package history

import "time"

// Run is one recorded engine run.
type Run struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	RunID      string    `gorm:"column:run_id;size:36;uniqueIndex" json:"run_id"`
	Kind       string    `gorm:"column:kind;size:16" json:"kind"`
	Version    string    `gorm:"column:version;size:64;index:idx_runs_label" json:"version"`
	Branch     string    `gorm:"column:branch;size:64;index:idx_runs_label" json:"branch"`
	StartedAt  time.Time `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt time.Time `gorm:"column:finished_at" json:"finished_at"`
	Listed     int       `gorm:"column:listed" json:"listed"`
	Exported   int       `gorm:"column:exported" json:"exported"`
	Failed     int       `gorm:"column:failed" json:"failed"`
	Unchanged  int       `gorm:"column:unchanged" json:"unchanged"`
	Removed    int       `gorm:"column:removed" json:"removed"`
	Cancelled  bool      `gorm:"column:cancelled" json:"cancelled"`
	Error      string    `gorm:"column:error;size:1024" json:"error,omitempty"`
}

// TableName overrides the table name.
func (Run) TableName() string {
	return "export_runs"
}

const (
	// KindExport is a continuous-sync export run.
	KindExport = "export"
	// KindDiff is a cross-version forced export.
	KindDiff = "diff"
	// KindReconcile is a reconcile repair.
	KindReconcile = "reconcile"
)
