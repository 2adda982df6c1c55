package reconcile

// ActionType represents the type of repair action.
type ActionType string

const (
	// ActionExport re-exports an asset whose artifact is missing.
	ActionExport ActionType = "export"
)

// Action represents a planned repair operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the logical path of the asset.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Expected is the artifact path that was not found.
	Expected string `json:"expected"`
}

// ReconcilePlan contains the scan result and planned actions.
type ReconcilePlan struct {
	// Missing lists logical paths whose artifact does not exist, sorted.
	Missing []string `json:"missing"`

	// Actions contains planned repair operations.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a reconcile plan.
type PlanSummary struct {
	// TotalEntries is the number of registry entries scanned.
	TotalEntries int `json:"total_entries"`

	// Unsupported counts entries whose extension has no export rule.
	Unsupported int `json:"unsupported"`

	// Excluded counts permanently excluded entries.
	Excluded int `json:"excluded"`

	// Present counts entries whose artifact exists.
	Present int `json:"present"`

	// Missing counts entries whose artifact does not exist.
	Missing int `json:"missing"`

	// ExportActions counts planned forced exports.
	ExportActions int `json:"export_actions"`
}

// ReconcileOptions controls whether a plan is applied.
type ReconcileOptions struct {
	// DryRun prevents execution of any action if true.
	DryRun bool

	// Confirmed indicates the user has confirmed the repair.
	// If false, actions will not execute regardless of DryRun.
	Confirmed bool
}
