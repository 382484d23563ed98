package harness

// TraceEvent is the outcome of one flow step.
type TraceEvent struct {
	Step      int      `json:"step"`
	Op        string   `json:"op"`
	Identity  string   `json:"identity"`
	TxID      string   `json:"tx_id"`
	Seq       int64    `json:"seq"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Logs      []string `json:"logs"` // program log lines, prefix stripped
	MaxHeight int      `json:"max_height"`
	Value     *uint64  `json:"value,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Logs returns every program log line of the run, in order.
func (r *Result) Logs() []string {
	var out []string
	for _, ev := range r.Trace {
		out = append(out, ev.Logs...)
	}
	return out
}
