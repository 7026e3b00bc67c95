package fetch

import (
	"strings"
	"time"
)

type ttlRule struct {
	substrings []string
	ttl        time.Duration
}

// First match wins, so crypto beats stock for a URL mentioning both.
var ttlRules = []ttlRule{
	{[]string{"coinbase", "crypto"}, 15 * time.Second},
	{[]string{"alphavantage", "stock"}, 30 * time.Second},
	{[]string{"exchangerate", "forex"}, 60 * time.Second},
	{[]string{"static", "config"}, 300 * time.Second},
}

// DefaultTTL applies to URLs no rule matches.
const DefaultTTL = 30 * time.Second

// RecommendedTTL picks a cache TTL from substrings of the URL.
func RecommendedTTL(url string) time.Duration {
	lower := strings.ToLower(url)
	for _, rule := range ttlRules {
		for _, s := range rule.substrings {
			if strings.Contains(lower, s) {
				return rule.ttl
			}
		}
	}
	return DefaultTTL
}
