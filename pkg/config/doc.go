// Package config loads rosterd configuration from ROSTERD_* environment
// variables, with validation at startup so misconfiguration fails fast
// instead of surfacing mid-request.
package config
