// Package services holds the shared plumbing for external tool integrations:
// the sentinel error taxonomy used for failure classification, context
// annotations carried across stage boundaries, and the command runner that
// captures tool diagnostics for fatal-error reporting.
package services
