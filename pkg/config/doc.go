/*
Package config loads the static configuration document of a run.

A document is read once (YAML or JSON), checked against an embedded JSON Schema,
decoded into typed structs and validated semantically. The resulting *Config is
immutable and is passed explicitly to every component that needs it.

Every problem found is reported at once as an *AggregateError whose entries are
*domain.ConfigurationError values, so errors.Is(err, domain.ErrConfiguration) holds.
*/
package config
