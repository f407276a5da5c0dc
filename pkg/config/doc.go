// Package config loads the exporter configuration from a YAML file. The raw
// document is validated against a built-in CUE schema (closed structs, so
// unknown keys are errors), then against struct-level validator tags, before
// any network call is made.
package config
