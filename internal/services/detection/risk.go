package detection

import (
	"strings"

	"github.com/ternarybob/redactiq/internal/models"
)

var riskKeywords = []struct {
	tier     models.RiskTier
	keywords []string
}{
	{tier: models.RiskHigh, keywords: []string{"ssn", "credit", "account"}},
	{tier: models.RiskMedium, keywords: []string{"phone", "email"}},
}

// ClassifyRisk derives the risk tier from a detection reason. Matching is a
// case-insensitive substring test and the first matching tier wins.
func ClassifyRisk(reason string) models.RiskTier {
	reason = strings.ToLower(reason)
	for _, rule := range riskKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(reason, kw) {
				return rule.tier
			}
		}
	}
	return models.RiskLow
}
