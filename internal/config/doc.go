// Package config handles configuration loading for persona-studio.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Keys missing from the file keep the values of Default.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from PERSONA_STUDIO_CONFIG environment variable
//  3. ./persona-studio.yaml or ./persona-studio.toml
//  4. ~/.config/persona-studio/config.yaml or config.toml
//
// Without a file the defaults are used.
//
// # Environment Variable Expansion
//
//	server:
//	  http_addr: "${STUDIO_ADDR}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	replies:
//	  delay_min: "1s"
//	  delay_max: "3s"
//	  generator_delay: "0s"
//	  dedupe_ttl: "5m"
//
// Each reply waits generator_delay and then a uniform random delay in
// [delay_min, delay_max).
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	store:
//	  driver: "memory"   # or "sqlite" (in-memory database)
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text or json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//	seed:
//	  enabled: true      # create the sample agents at startup
//	notices:
//	  keep: 50
package config
