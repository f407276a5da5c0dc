package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// configSchema is the built-in CUE schema the raw config document must
// satisfy. Structs are closed so misspelled section or field names are
// rejected instead of being dropped by the YAML decoder.
const configSchema = `
#Config: {
	controller: {
		base_url:  string
		account:   string
		username:  string
		password?: string
		secret?:   string
		proxy_url?: string
		timeout?:  string
	}
	export: {
		application_names: string
		backend_types?:    string
		skip_thread_tasks?: bool
	}
	output: {
		format?: "csv" | "sqlite"
		path:    string
		quote?:  bool
	}
	delivery?: {
		sftp?: {
			host:     string
			port?:    int & >0 & <65536
			username: string
			password?: string
			private_key_path?: string
			known_hosts_path?: string
			remote_path: string
		}
	}
	policies?: [...string]
	telemetry?: {
		logging?: {
			level?:  "trace" | "debug" | "info" | "warn" | "error"
			format?: "console" | "json"
			output?: string
		}
		metrics?: {
			enabled?: bool
			listen_address?: string
			path?: string
			namespace?: string
		}
		tracing?: {
			enabled?: bool
			exporter?: "otlp" | "stdout" | "none"
			endpoint?: string
			insecure?: bool
		}
	}
}
`

// validateSchema unifies the decoded YAML document with the built-in schema.
func validateSchema(raw []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("not valid yaml: %w", err)
	}

	cuectx := cuecontext.New()

	compiled := cuectx.CompileString(configSchema)
	if err := compiled.Err(); err != nil {
		return fmt.Errorf("compiling built-in schema: %w", err)
	}
	schema := compiled.LookupPath(cue.ParsePath("#Config"))

	if err := schema.Unify(cuectx.Encode(doc)).Validate(); err != nil {
		return err
	}
	return nil
}
