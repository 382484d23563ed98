package ir

// Version constants for the persisted formats and the engine.
const (
	// StoreVersion is the version of the transaction record format.
	StoreVersion = "1"

	// EngineVersion is the stepper engine version.
	EngineVersion = "0.1.0"
)
