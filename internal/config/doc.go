// Package config loads and validates the dispatch engine's configuration.
//
// The configuration file is named config.json and is located by walking up
// from the running executable's directory until a directory containing it
// is found (the "solution root"). Its shape and field names are an external
// wire contract consumed by operators and existing tooling, so it is
// decoded with encoding/json rather than a richer format, and its fields
// keep the PascalCase spelling from that contract.
package config
