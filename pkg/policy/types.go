package policy

// Policy is a named rego rule set evaluated against every discovered
// backend row. A row matched by any `deny` rule of an enabled policy is
// excluded from the output.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the rego policy code. The module must expose a `deny`
	// set; package name is free.
	Rego string `json:"rego"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`
}

// Input is the document handed to rego evaluation for one row.
type Input struct {
	Backend BackendInput `json:"backend"`
}

// BackendInput mirrors one export row for policy evaluation.
type BackendInput struct {
	Application string `json:"application"`
	Tier        string `json:"tier"`
	Type        string `json:"type"`
	Name        string `json:"name"`
}
