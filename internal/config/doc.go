// Package config handles configuration loading for kyc-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from KYC_GATEWAY_CONFIG environment variable
//  2. ~/.config/kyc-gateway/gateway.yaml (or $XDG_CONFIG_HOME equivalent)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${KYC_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	directory:
//	  query_timeout: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:3000"
//
// Directory database:
//
//	database:
//	  path: "./kyc.db"
//
// Handshake authentication (optional; leave jwt_secret empty to disable):
//
//	auth:
//	  jwt_secret: "${KYC_JWT_SECRET}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text or json
package config
