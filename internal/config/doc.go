// Package config handles configuration loading for annosync.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation of backend declarations.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  realm: "${ANNOSYNC_REALM}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	http:
//	  timeout: "30s"
//	  retry_base: "250ms"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Session identity and credential realm:
//
//	session:
//	  user: "alice"
//	  realm: "https://auth.backend/token"
//
// Backends, one block per remote annotation collection:
//
//	backends:
//	  - name: "notes"
//	    family: "a"        # "a" or "b"
//	    version: 1         # family a: 1; family b: 2 or 3
//	    base_url: "https://backend/api/note"
//	    kind: "Note"
//	    group: ""          # optional listing filter
//
// HTTP client tuning:
//
//	http:
//	  timeout: "30s"
//	  retry_cap: 5
//	  retry_base: "250ms"
//
// Local draft storage:
//
//	drafts:
//	  path: "~/.local/share/annosync/drafts.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - At least one backend, with unique names
//   - Family tag and version compatibility
//   - base_url presence
//   - Duration format validity
//
// # Usage
//
//	cfg, err := config.Load("/etc/annosync/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
