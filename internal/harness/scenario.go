package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stepper/internal/ir"
)

// Scenario is one executable run: identities and records to set up, a flow
// of start/resume transactions, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxDepth overrides the engine's stack height ceiling when non-zero.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// TxPrefix prefixes the sequential transaction ids. Defaults to "tx".
	TxPrefix string `yaml:"tx_prefix,omitempty"`

	// Identities are funded before the flow runs.
	Identities []IdentitySetup `yaml:"identities"`

	// Records are written directly to the store, bypassing the program.
	Records []RecordSetup `yaml:"records,omitempty"`

	// Flow is executed in order, one transaction per step.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final store.
	Assertions []Assertion `yaml:"assertions"`
}

// IdentitySetup names a deterministic identity and its starting balance.
type IdentitySetup struct {
	Name     string `yaml:"name"`
	Lamports uint64 `yaml:"lamports"`
}

// RecordSetup seeds an identity's record with a mid-computation state.
// The bump is derived, not given.
type RecordSetup struct {
	Identity  string `yaml:"identity"`
	A         uint64 `yaml:"a"`
	B         uint64 `yaml:"b"`
	Remaining uint64 `yaml:"remaining"`
}

// Flow operations.
const (
	OpStart  = "start"
	OpResume = "resume"
)

// FlowStep is one transaction signed by Identity.
type FlowStep struct {
	// Op is "start" or "resume".
	Op string `yaml:"op"`

	// Identity pays for and signs the transaction.
	Identity string `yaml:"identity"`

	// Record names the identity whose record address the instruction
	// carries. Defaults to Identity.
	Record string `yaml:"record,omitempty"`

	// N is the step count for start.
	N *uint64 `yaml:"n,omitempty"`

	// Expect validates the receipt. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected transaction outcome.
type ExpectClause struct {
	// Status is "ok" or "failed".
	Status string `yaml:"status"`

	// Error is the expected failure code (see program.FailureCode).
	Error string `yaml:"error,omitempty"`

	// Value is the expected return value.
	Value *uint64 `yaml:"value,omitempty"`

	// MaxHeight is the expected deepest stack height, when non-zero.
	MaxHeight int `yaml:"max_height,omitempty"`
}

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Identity selects the record (final_state).
	Identity string `yaml:"identity,omitempty"`

	// Absent requires the record not to exist (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Expect holds record fields: a, b, remaining, lamports (final_state).
	// Subset match.
	Expect map[string]uint64 `yaml:"expect,omitempty"`

	// Line is a program log line (log_contains, log_count).
	Line string `yaml:"line,omitempty"`

	// Lines are program log lines in expected order (log_order).
	Lines []string `yaml:"lines,omitempty"`

	// Status selects transactions (tx_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of occurrences (log_count, tx_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState  = "final_state"
	AssertLogContains = "log_contains"
	AssertLogOrder    = "log_order"
	AssertLogCount    = "log_count"
	AssertTxCount     = "tx_count"
)

var stateFields = map[string]bool{"a": true, "b": true, "remaining": true, "lamports": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario reports every problem at once.
func validateScenario(s *Scenario) error {
	var result *multierror.Error

	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("name is required"))
	}
	if s.Description == "" {
		result = multierror.Append(result, fmt.Errorf("description is required"))
	}
	if s.MaxDepth < 0 {
		result = multierror.Append(result, fmt.Errorf("max_depth must be positive"))
	}
	if len(s.Identities) == 0 {
		result = multierror.Append(result, fmt.Errorf("identities list is required and must be non-empty"))
	}
	if len(s.Flow) == 0 {
		result = multierror.Append(result, fmt.Errorf("flow list is required and must be non-empty"))
	}
	if len(s.Assertions) == 0 {
		result = multierror.Append(result, fmt.Errorf("assertions list is required and must be non-empty"))
	}

	known := make(map[string]bool, len(s.Identities))
	for i, id := range s.Identities {
		switch {
		case id.Name == "":
			result = multierror.Append(result, fmt.Errorf("identities[%d]: name is required", i))
		case known[id.Name]:
			result = multierror.Append(result, fmt.Errorf("identities[%d]: duplicate name %q", i, id.Name))
		}
		known[id.Name] = true
	}
	checkIdentity := func(where, name string) {
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("%s: identity is required", where))
		} else if !known[name] {
			result = multierror.Append(result, fmt.Errorf("%s: unknown identity %q", where, name))
		}
	}

	for i, rec := range s.Records {
		checkIdentity(fmt.Sprintf("records[%d]", i), rec.Identity)
	}

	for i, step := range s.Flow {
		where := fmt.Sprintf("flow[%d]", i)
		checkIdentity(where, step.Identity)
		if step.Record != "" && !known[step.Record] {
			result = multierror.Append(result, fmt.Errorf("%s: unknown record identity %q", where, step.Record))
		}
		switch step.Op {
		case OpStart:
			if step.N == nil {
				result = multierror.Append(result, fmt.Errorf("%s: n is required for start", where))
			}
		case OpResume:
			if step.N != nil {
				result = multierror.Append(result, fmt.Errorf("%s: n is not allowed for resume", where))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("%s: unknown op %q", where, step.Op))
		}
		if step.Expect != nil {
			if err := validateExpect(where, step.Expect); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], known); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func validateExpect(where string, e *ExpectClause) error {
	switch e.Status {
	case ir.TxStatusOK:
		if e.Error != "" {
			return fmt.Errorf("%s.expect: error is only allowed with status failed", where)
		}
	case ir.TxStatusFailed:
		if e.Value != nil {
			return fmt.Errorf("%s.expect: value is only allowed with status ok", where)
		}
	default:
		return fmt.Errorf("%s.expect: status must be %q or %q", where, ir.TxStatusOK, ir.TxStatusFailed)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, identities map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState:
		if !identities[a.Identity] {
			return fmt.Errorf("assertions[%d]: unknown identity %q for final_state", index, a.Identity)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: absent and expect are mutually exclusive", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for field := range a.Expect {
			if !stateFields[field] {
				return fmt.Errorf("assertions[%d]: unknown record field %q", index, field)
			}
		}
	case AssertLogContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for log_contains", index)
		}
	case AssertLogOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for log_order", index)
		}
	case AssertLogCount:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for log_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
	case AssertTxCount:
		if a.Status != ir.TxStatusOK && a.Status != ir.TxStatusFailed {
			return fmt.Errorf("assertions[%d]: status must be %q or %q for tx_count", index, ir.TxStatusOK, ir.TxStatusFailed)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for tx_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
