// Package config provides configuration management for the Mercator gateway
// expression runtime.
//
// This package handles loading, validating, and reloading configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("gateway.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("gateway.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MERCATOR_SECTION_FIELD.
// For example:
//
//   - MERCATOR_RULES_FILE_PATH overrides rules.file_path
//   - MERCATOR_EXPRESSION_CACHE_SIZE overrides expression.cache_size
//   - MERCATOR_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// A Store holds the active configuration behind an atomic pointer. Watch
// reloads it when the file changes; a reload that fails validation keeps the
// previous configuration:
//
//	store, err := config.NewStore("gateway.yaml", logger)
//	if err != nil {
//		return err
//	}
//	go store.Watch(ctx, 100*time.Millisecond)
//
// # Example Configuration
//
//	expression:
//	  cache_size: 2048
//	  lenient: true
//
//	rules:
//	  file_path: "./rules.yaml"
//	  watch: true
//
// Rules can instead be pulled from Git; file_path is then ignored:
//
//	rules:
//	  git:
//	    repository: "https://github.com/company/gateway-rules.git"
//	    branch: "main"
//	    path: "prod/rules.yaml"
//	    auth:
//	      type: token
//	      token: "${secret:git-token}"
//
// Secret references are read from a file in secrets.dir, then from the
// environment (MERCATOR_SECRET_GIT_TOKEN above):
//
//	secrets:
//	  dir: "/var/run/secrets/gateway"
//
//	server:
//	  listen_address: ":8443"
//	  max_body_bytes: 1048576
//	  tls:
//	    enabled: true
//	    cert_file: "/etc/gateway/tls.crt"
//	    key_file: "/etc/gateway/tls.key"
//	    client_ca_file: "/etc/gateway/proxy-ca.crt"
//
//	audit:
//	  enabled: true
//	  sqlite:
//	    path: "/var/lib/mercator/decisions.db"
//	  retention:
//	    days: 14
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  metrics:
//	    listen_address: "127.0.0.1:9090"
package config
