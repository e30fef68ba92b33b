// Package config provides application configuration management from
// environment variables and the YAML policy file.
//
// # Overview
//
// This package loads and validates configuration from environment
// variables with sensible defaults, and loads the authorization policy
// from the file named by FEDGATE_POLICY_FILE.
//
// # Configuration Structure
//
// Server settings:
//
//	FEDGATE_HOST="0.0.0.0"
//	FEDGATE_PORT="8080"
//	FEDGATE_READ_TIMEOUT="15s"
//	FEDGATE_WRITE_TIMEOUT="15s"
//	FEDGATE_SHUTDOWN_TIMEOUT="30s"
//
// Upstream membership API settings:
//
//	FEDGATE_UPSTREAM_API="https://api.github.com"
//	FEDGATE_UPSTREAM_TIMEOUT="10s"
//	FEDGATE_UPSTREAM_MAX_PAGES="64"
//	FEDGATE_UPSTREAM_RATE_LIMIT="0"   # requests/second, 0 disables
//	FEDGATE_UPSTREAM_RATE_BURST="0"
//	FEDGATE_CONCURRENT_MEMBERSHIP_CHECKS="false"
//
// Userinfo claim backfill (one of the two is enough; both empty
// disables the backfill):
//
//	FEDGATE_ISSUER_URL=""    # OIDC discovery
//	FEDGATE_USERINFO_URL=""  # direct endpoint
//
// Observability settings:
//
//	FEDGATE_LOG_LEVEL="info"  # debug, info, warn, error
//
// # Policy File
//
// The policy file is YAML:
//
//	default_username_claim: eppn
//	additional_username_claims: [email]
//	allowed_users: [alice]
//	allowed_organizations: [org-a, org-b:team-x]
//	allowed_idps:
//	  https://idp.example/shibboleth:
//	    username_derivation:
//	      username_claim: email
//	      action: strip_idp_domain
//	      domain: example.edu
//	    allowed_domains: [example.edu]
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/idp: Validates and holds the per-IdP rule table
//   - pkg/observability: Uses observability configuration
package config
