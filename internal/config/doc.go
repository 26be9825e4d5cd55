// Package config builds the immutable agent configuration.
//
// Values are resolved in order: defaults, an optional YAML file, a .env file
// in the working directory, then the process environment. The result is
// validated once and passed by pointer into every component.
package config
