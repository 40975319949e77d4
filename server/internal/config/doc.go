// Package config loads the collector's settings from the `server:` section of
// config.yaml. The `agent:` key in the same file is ignored.
//
// Load applies defaults, unmarshals the YAML over them, then validates.
// Secrets (the API key, webhook URLs) are never stored in the file: the
// config names the environment variable that holds each one.
package config
