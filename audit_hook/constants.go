package audithook

// Action constants for audit events.
const (
	// Item actions
	ActionItemCreated   = "item.created"
	ActionItemUpdated   = "item.updated"
	ActionItemDeleted   = "item.deleted"
	ActionStockAdjusted = "stock.adjusted"
	ActionLowStock      = "stock.low"

	// Record actions
	ActionReceiptCreated   = "receipt.created"
	ActionReceiptUpdated   = "receipt.updated"
	ActionReceiptDeleted   = "receipt.deleted"
	ActionUsageCreated     = "usage.created"
	ActionUsageUpdated     = "usage.updated"
	ActionUsageDeleted     = "usage.deleted"
	ActionRequirementSaved = "requirement.saved"
	ActionReconcileSkipped = "reconcile.skipped"

	// Account actions
	ActionUserCreated  = "user.created"
	ActionUserSignedIn = "user.signed_in"
	ActionAuthFailed   = "auth.failed"
	ActionUserDeleted  = "user.deleted"

	// Maintenance actions
	ActionBackupCompleted = "backup.completed"
	ActionHistoryReset    = "history.reset"
)

// Resource constants for audit events.
const (
	ResourceItem        = "item"
	ResourceReceipt     = "receipt"
	ResourceUsage       = "usage"
	ResourceRequirement = "requirement"
	ResourceUser        = "user"
	ResourceBackup      = "backup"
)

// Category constants for audit events.
const (
	CategoryInventory   = "inventory"
	CategoryPurchasing  = "purchasing"
	CategoryConsumption = "consumption"
	CategoryPlanning    = "planning"
	CategoryAccess      = "access"
	CategoryMaintenance = "maintenance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
