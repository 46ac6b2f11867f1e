package risk

import (
	"regexp"
	"strings"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// WeightRule maps a permission pattern to a risk weight and reason category.
// A pattern is an exact slug or contains "*" as a multi-segment wildcard.
type WeightRule struct {
	Pattern string
	Weight  int
	Code    string
	Reason  string
}

// The table is evaluated first-match in declaration order, so rules are
// ordered most-specific-first. Overlapping patterns (e.g. "*.delete" and
// "system.roles.*") are tie-broken purely by this ordering.
var weightRules = []WeightRule{
	{Pattern: "system.users.impersonate", Weight: 20, Code: "IMPERSONATION", Reason: "Impersonation grants full access as another user."},
	{Pattern: "system.roles.approve", Weight: 18, Code: "ROLE_APPROVAL", Reason: "Role approval activates permission changes platform-wide."},
	{Pattern: "system.settings.security.*", Weight: 15, Code: "SECURITY_CONFIG", Reason: "Security configuration controls authentication and audit posture."},
	{Pattern: "system.roles.*", Weight: 15, Code: "ROLE_ADMIN", Reason: "Role administration shapes everyone's effective access."},
	{Pattern: "platform.tenants.*", Weight: 12, Code: "TENANT_ADMIN", Reason: "Tenant administration affects every workspace on the platform."},
	{Pattern: "*.approve", Weight: 12, Code: "APPROVAL_POWER", Reason: "Approval authority finalizes business documents."},
	{Pattern: "*.manage", Weight: 10, Code: "BROAD_MANAGE", Reason: "Manage grants bundle multiple write capabilities."},
	{Pattern: "*.delete", Weight: 10, Code: "DESTRUCTIVE", Reason: "Deletion is destructive and often irreversible."},
	{Pattern: "*.execute", Weight: 8, Code: "EXECUTION", Reason: "Execution permissions trigger external side effects."},
	{Pattern: "*.export", Weight: 8, Code: "DATA_EXPORT", Reason: "Export permissions move data out of the platform."},
}

type compiledRule struct {
	WeightRule
	exact string
	re    *regexp.Regexp
}

var compiledRules = compileRules(weightRules)

func compileRules(rules []WeightRule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		c := compiledRule{WeightRule: r}
		if strings.Contains(r.Pattern, "*") {
			expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(r.Pattern), `\*`, ".*") + "$"
			c.re = regexp.MustCompile(expr)
		} else {
			c.exact = r.Pattern
		}
		out = append(out, c)
	}
	return out
}

func (c compiledRule) matches(p authz.Permission) bool {
	if c.re != nil {
		return c.re.MatchString(string(p))
	}
	return c.exact == string(p)
}

// WeightRules returns the static rule table in evaluation order.
func WeightRules() []WeightRule {
	return weightRules
}
