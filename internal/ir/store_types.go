package ir

// NOTE: These are store-layer records describing executed transactions.
// Ordering uses Seq (logical clock), never timestamps.

// Transaction status values.
const (
	TxStatusOK     = "ok"
	TxStatusFailed = "failed"
)

// TxRecord is the durable summary of one executed transaction.
type TxRecord struct {
	ID            string        `json:"id"`
	Seq           int64         `json:"seq"`
	Payer         Pubkey        `json:"payer"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	ReturnProgram Pubkey        `json:"return_program"`
	ReturnData    []byte        `json:"return_data,omitempty"`
	MaxHeight     int           `json:"max_height"`
	EngineVersion string        `json:"engine_version"`
	Logs          []string      `json:"logs"`
	Frames        []FrameRecord `json:"frames"`
}

// FrameRecord is one program invocation inside a transaction, in entry order.
type FrameRecord struct {
	Ordinal   int    `json:"ordinal"`
	ProgramID Pubkey `json:"program_id"`
	Height    int    `json:"height"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}
