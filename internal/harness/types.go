package harness

// CaseResult is the outcome of one case on one dialect.
type CaseResult struct {
	Case    string   `json:"case"`
	Dialect string   `json:"dialect"`
	SQL     string   `json:"sql,omitempty"`
	Params  []string `json:"params,omitempty"` // ir.Format of each bound value
	IDs     []string `json:"ids"`
	Count   int64    `json:"count"`
	Error   string   `json:"error,omitempty"` // parse error for error cases
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every case matched its expectations.
	Pass bool `json:"pass"`

	// Cases holds one entry per case and dialect, in scenario order.
	Cases []CaseResult `json:"cases"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCase records a case outcome.
func (r *Result) AddCase(c CaseResult) {
	r.Cases = append(r.Cases, c)
}
