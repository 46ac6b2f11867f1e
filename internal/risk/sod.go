// Package risk classifies permission sets: weighted risk scoring and
// segregation-of-duties conflict detection over static rule tables.
package risk

import (
	"strings"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// Severity ranks SoD conflicts.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

// SoDRule names a pair of permission patterns that must not be held together.
type SoDRule struct {
	ID          string
	Name        string
	Severity    Severity
	PatternA    authz.Permission
	PatternB    authz.Permission
	Remediation string
	References  []string
}

// SoDConflict records one violated rule and the grants that triggered it.
type SoDConflict struct {
	Rule        SoDRule
	PermissionA authz.Permission
	PermissionB authz.Permission
}

// SoDResult aggregates validation over the full rule table. IsValid is false
// only when at least one CRITICAL conflict exists; HIGH and MEDIUM conflicts
// are reported but do not invalidate on their own.
type SoDResult struct {
	IsValid       bool
	Conflicts     []SoDConflict
	CriticalCount int
	HighCount     int
	MediumCount   int
}

// Loaded once, immutable for the process lifetime.
var sodRules = []SoDRule{
	{
		ID:          "SOD-ROLE-001",
		Name:        "Role authoring vs role approval",
		Severity:    SeverityCritical,
		PatternA:    "system.roles.create",
		PatternB:    "system.roles.approve",
		Remediation: "Split role definition and role approval across different roles.",
		References:  []string{"SOX-404", "ISO27001-A.6.1.2"},
	},
	{
		ID:          "SOD-ROLE-002",
		Name:        "Role editing vs role approval",
		Severity:    SeverityHigh,
		PatternA:    "system.roles.update",
		PatternB:    "system.roles.approve",
		Remediation: "Editors of role definitions should not also approve them.",
		References:  []string{"SOX-404"},
	},
	{
		ID:          "SOD-BILL-001",
		Name:        "Invoice creation vs invoice approval",
		Severity:    SeverityCritical,
		PatternA:    "system.billing.invoices.create",
		PatternB:    "system.billing.invoices.approve",
		Remediation: "Route invoice approval to a separate finance role.",
		References:  []string{"SOX-404", "COSO-CC5"},
	},
	{
		ID:          "SOD-BILL-002",
		Name:        "Payment execution vs payment approval",
		Severity:    SeverityHigh,
		PatternA:    "system.billing.payments.execute",
		PatternB:    "system.billing.payments.approve",
		Remediation: "Keep payment release and payment approval in different hands.",
		References:  []string{"SOX-404"},
	},
	{
		ID:          "SOD-USER-001",
		Name:        "User creation vs impersonation",
		Severity:    SeverityHigh,
		PatternA:    "system.users.create",
		PatternB:    "system.users.impersonate",
		Remediation: "An account creator with impersonation can fabricate untraceable sessions.",
		References:  []string{"ISO27001-A.9.2"},
	},
	{
		ID:          "SOD-AUD-001",
		Name:        "Security configuration vs audit trail removal",
		Severity:    SeverityCritical,
		PatternA:    "system.settings.security.update",
		PatternB:    "system.audit.delete",
		Remediation: "Audit log deletion must stay outside security-administration roles.",
		References:  []string{"ISO27001-A.12.4"},
	},
}

// SoDRules returns the static rule table.
func SoDRules() []SoDRule {
	return sodRules
}

// ValidateSoD tests every rule pair against the permission set. A pattern
// counts as held when it is literally present, or when a held permission is a
// strict dot-prefix ancestor of it, or when it is a strict dot-prefix
// ancestor of a held permission. The containment is deliberately broader in
// both directions than the access matcher: for conflict purposes a broad
// grant is assumed to cover its descendants and vice versa.
func ValidateSoD(permissions []authz.Permission) SoDResult {
	result := SoDResult{IsValid: true}
	for _, rule := range sodRules {
		permA, heldA := patternHeld(rule.PatternA, permissions)
		if !heldA {
			continue
		}
		permB, heldB := patternHeld(rule.PatternB, permissions)
		if !heldB {
			continue
		}
		result.Conflicts = append(result.Conflicts, SoDConflict{Rule: rule, PermissionA: permA, PermissionB: permB})
		switch rule.Severity {
		case SeverityCritical:
			result.CriticalCount++
		case SeverityHigh:
			result.HighCount++
		case SeverityMedium:
			result.MediumCount++
		}
	}
	result.IsValid = result.CriticalCount == 0
	return result
}

func patternHeld(pattern authz.Permission, permissions []authz.Permission) (authz.Permission, bool) {
	for _, p := range permissions {
		if p == pattern {
			return p, true
		}
		if strings.HasPrefix(string(pattern), string(p)+".") {
			return p, true
		}
		if strings.HasPrefix(string(p), string(pattern)+".") {
			return p, true
		}
	}
	return "", false
}
