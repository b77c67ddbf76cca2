// Package triage classifies management queries into business domains and
// routes them to the matching domain specialist.
//
// The classifier is a keyword-scoring heuristic: every keyword of a domain
// that occurs in the lower-cased query adds one point to that domain. The
// highest scoring domain wins; ties are broken by the fixed domain order
// (marketing, sales, logistics, collection) and reported as ambiguous.
package triage

import (
	"sort"
	"strings"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// Keywords maps a domain to the phrases that indicate it.
type Keywords map[decisionkit.Domain][]string

// DefaultKeywords returns the built-in keyword tables.
func DefaultKeywords() Keywords {
	return Keywords{
		decisionkit.DomainMarketing: {
			"marketing", "campaign", "brand", "advertising", "promotion",
			"market share", "customer acquisition", "social media", "digital marketing",
			"campaign performance", "marketing roi", "conversion rate",
		},
		decisionkit.DomainSales: {
			"sales", "revenue", "quota", "pipeline", "deal", "customer",
			"sales rep", "forecast", "opportunity", "close rate", "win rate",
			"sales performance", "upsell", "cross-sell",
		},
		decisionkit.DomainLogistics: {
			"logistics", "shipping", "delivery", "inventory", "warehouse",
			"supply chain", "stock", "fulfillment", "supplier", "distribution",
			"backorder", "lead time", "transportation",
		},
		decisionkit.DomainCollection: {
			"collection", "receivable", "payment", "invoice", "due",
			"aging", "overdue", "cash flow", "debt", "credit",
			"accounts receivable", "past due", "outstanding balance",
		},
	}
}

// Analysis is the result of scoring a query against every domain.
type Analysis struct {
	// PrimaryDomain is the best match, or DomainUnknown when nothing matched.
	PrimaryDomain decisionkit.Domain `json:"primary_domain"`

	// IsClearMatch is false when another domain scored as high as the primary.
	IsClearMatch bool `json:"is_clear_match"`

	// DomainScores always holds all four domains.
	DomainScores map[decisionkit.Domain]int `json:"domain_scores"`

	// SecondaryDomains lists the other domains with a non-zero score, in domain order.
	SecondaryDomains []decisionkit.Domain `json:"secondary_domains"`

	// TiedDomains lists every domain sharing the top score when the match is ambiguous.
	TiedDomains []decisionkit.Domain `json:"tied_domains,omitempty"`

	// MatchedKeywords records which phrases contributed to each score.
	MatchedKeywords map[decisionkit.Domain][]string `json:"matched_keywords,omitempty"`
}

// Score returns the score of a domain.
func (a Analysis) Score(d decisionkit.Domain) int {
	return a.DomainScores[d]
}

// Classifier scores queries against per-domain keyword tables.
type Classifier struct {
	keywords Keywords
}

// NewClassifier creates a classifier from the default tables plus any extra
// keywords. Keywords are lower-cased and de-duplicated per domain.
func NewClassifier(extra Keywords) *Classifier {
	merged := make(Keywords, 4)
	for _, domain := range decisionkit.AllDomains() {
		seen := make(map[string]bool)
		var list []string
		add := func(words []string) {
			for _, w := range words {
				w = strings.ToLower(strings.TrimSpace(w))
				if w == "" || seen[w] {
					continue
				}
				seen[w] = true
				list = append(list, w)
			}
		}
		add(DefaultKeywords()[domain])
		add(extra[domain])
		merged[domain] = list
	}
	return &Classifier{keywords: merged}
}

// Keywords returns a copy of the classifier's keyword tables.
func (c *Classifier) Keywords() Keywords {
	out := make(Keywords, len(c.keywords))
	for d, words := range c.keywords {
		out[d] = append([]string(nil), words...)
	}
	return out
}

// Analyze scores the query against every domain.
func (c *Classifier) Analyze(query string) Analysis {
	content := strings.ToLower(query)
	domains := decisionkit.AllDomains()

	analysis := Analysis{
		PrimaryDomain:    decisionkit.DomainUnknown,
		IsClearMatch:     true,
		DomainScores:     make(map[decisionkit.Domain]int, len(domains)),
		SecondaryDomains: []decisionkit.Domain{},
		MatchedKeywords:  make(map[decisionkit.Domain][]string),
	}

	primary := domains[0]
	for _, domain := range domains {
		score := 0
		for _, keyword := range c.keywords[domain] {
			if strings.Contains(content, keyword) {
				score++
				analysis.MatchedKeywords[domain] = append(analysis.MatchedKeywords[domain], keyword)
			}
		}
		analysis.DomainScores[domain] = score
		// strict comparison keeps the earliest domain on ties
		if score > analysis.DomainScores[primary] {
			primary = domain
		}
	}

	primaryScore := analysis.DomainScores[primary]
	if primaryScore == 0 {
		return analysis
	}
	analysis.PrimaryDomain = primary

	for _, domain := range domains {
		score := analysis.DomainScores[domain]
		if domain != primary && score > 0 {
			analysis.SecondaryDomains = append(analysis.SecondaryDomains, domain)
		}
		if score == primaryScore {
			analysis.TiedDomains = append(analysis.TiedDomains, domain)
		}
	}
	if len(analysis.TiedDomains) > 1 {
		analysis.IsClearMatch = false
	} else {
		analysis.TiedDomains = nil
	}

	return analysis
}

// RankedDomains returns the domains with a non-zero score, best first.
// Equal scores keep the fixed domain order.
func (a Analysis) RankedDomains() []decisionkit.Domain {
	ranked := make([]decisionkit.Domain, 0, len(a.DomainScores))
	for _, d := range decisionkit.AllDomains() {
		if a.DomainScores[d] > 0 {
			ranked = append(ranked, d)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return a.DomainScores[ranked[i]] > a.DomainScores[ranked[j]]
	})
	return ranked
}
