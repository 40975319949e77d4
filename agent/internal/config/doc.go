// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent} - full config tree parsed from YAML
//   - AgentConfig - collector_endpoint, device_name, experiment_id,
//     flush_interval, sample_interval, log_level, admin_addr, timestamp,
//     payload, transport, link, collector_auth, collector_tls, sensors []
//   - Sensor - name, type (prometheus|file), endpoint+metric or path, scale,
//     auth, tls
//   - AuthConfig - mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s flush, 10s sample,
// calendar_ms timestamps in UTC, 10s transport timeout), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors (vim, VS Code) by re-adding the watch after
// a rename event.
package config
