// Package config loads and watches authcore configuration.
//
// Configuration comes from a YAML file (--conf flag or ./config.yaml) with
// AUTHCORE_* environment overrides. Sections are materialized into typed
// structs at load time; malformed security-critical values (missing signing
// secret, bad duration grammar) fail at startup rather than per-request.
package config
