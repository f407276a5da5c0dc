package policy

// BuiltinPolicies returns the policies shipped with the exporter. All are
// disabled by default so a plain run reproduces the unfiltered inventory;
// they serve as templates for site-specific rules.
func BuiltinPolicies() []Policy {
	return []Policy{
		excludeLoopbackPolicy(),
	}
}

// excludeLoopbackPolicy drops backends that point at loopback addresses.
// Useful when local sidecars show up as external calls and pollute the
// inventory.
func excludeLoopbackPolicy() Policy {
	return Policy{
		Name:        "exclude-loopback",
		Description: "Excludes backends whose name points at a loopback address",
		Enabled:     false,
		Rego: `package backendex.policies.loopback

import rego.v1

deny contains violation if {
	contains(input.backend.name, "localhost")
	violation := {
		"message": sprintf("backend %s targets loopback", [input.backend.name]),
	}
}

deny contains violation if {
	contains(input.backend.name, "127.0.0.1")
	violation := {
		"message": sprintf("backend %s targets loopback", [input.backend.name]),
	}
}
`,
	}
}
