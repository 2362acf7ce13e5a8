package tracking

// Cart lifecycle event types recorded in the append-only event log.
const (
	EventViewCart          = "view_cart"
	EventAddItem           = "add_item"
	EventRemoveItem        = "remove_item"
	EventCartAbandoned     = "cart_abandoned"
	EventCartCompleted     = "cart_completed"
	EventMergeSession      = "merge_session"
	EventRecoverCart       = "recover_cart"
	EventRecoveryCompleted = "recovery_completed"
)
