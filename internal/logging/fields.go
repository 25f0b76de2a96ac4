package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized key for the engine session identifier.
	FieldSessionID = "session_id"
	// FieldProvider is the standardized key for the translation provider name.
	FieldProvider = "provider"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldMode is the standardized key for the stream classification.
	FieldMode = "mode"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error taxonomy label.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldText carries (possibly shortened) caption text.
	FieldText = "text"
)
