package risk

import (
	"sort"
	"strings"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// Level classifies an aggregate risk score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Flat penalty codes added on top of per-permission rule weights.
const (
	CodeSoDConflict = "SOD_CONFLICT"
	CodeAdminScope  = "ADMIN_SCOPE"

	sodConflictWeight = 30
	adminScopeWeight  = 10

	maxReasons = 5
)

// Reason explains one contribution to the score.
type Reason struct {
	Code        string
	Description string
	Weight      int
}

// Assessment is the computed risk classification of a permission set.
type Assessment struct {
	Score   int
	Level   Level
	Reasons []Reason
}

// ScoreRisk classifies a permission set. Each permission contributes the
// weight of the first matching rule in table order. One flat penalty applies
// for any SoD conflict and one for presence of administrative-scope slugs,
// regardless of how many permissions trigger them. The total clamps to
// [0,100]; reasons are deduplicated by code keeping the highest weight,
// sorted by descending weight and truncated to the top five.
func ScoreRisk(permissions []authz.Permission) Assessment {
	total := 0
	var reasons []Reason

	for _, perm := range permissions {
		for _, rule := range compiledRules {
			if rule.matches(perm) {
				total += rule.Weight
				reasons = append(reasons, Reason{Code: rule.Code, Description: rule.Reason, Weight: rule.Weight})
				break
			}
		}
	}

	if sod := ValidateSoD(permissions); len(sod.Conflicts) > 0 {
		total += sodConflictWeight
		reasons = append(reasons, Reason{
			Code:        CodeSoDConflict,
			Description: "The set triggers segregation-of-duties conflicts.",
			Weight:      sodConflictWeight,
		})
	}

	if hasAdminScope(permissions) {
		total += adminScopeWeight
		reasons = append(reasons, Reason{
			Code:        CodeAdminScope,
			Description: "The set includes administrative-scope permissions.",
			Weight:      adminScopeWeight,
		})
	}

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	return Assessment{
		Score:   total,
		Level:   levelFor(total),
		Reasons: topReasons(reasons),
	}
}

func levelFor(score int) Level {
	switch {
	case score <= 30:
		return LevelLow
	case score <= 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

func hasAdminScope(permissions []authz.Permission) bool {
	for _, p := range permissions {
		if strings.HasPrefix(string(p), "system.") || strings.HasPrefix(string(p), "platform.") {
			return true
		}
	}
	return false
}

func topReasons(reasons []Reason) []Reason {
	byCode := make(map[string]Reason, len(reasons))
	for _, r := range reasons {
		if best, ok := byCode[r.Code]; !ok || r.Weight > best.Weight {
			byCode[r.Code] = r
		}
	}
	out := make([]Reason, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > maxReasons {
		out = out[:maxReasons]
	}
	return out
}
