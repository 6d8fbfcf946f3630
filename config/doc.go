// Package config loads client configuration from the environment, with an
// optional YAML overlay for CLI use.
package config
