package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

func TestAnalyzeClearMatches(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		query string
		want  decisionkit.Domain
		score int
	}{
		{"How is our marketing campaign performance?", decisionkit.DomainMarketing, 3},
		{"What's our revenue forecast for next quarter?", decisionkit.DomainSales, 2},
		{"Which invoices are overdue?", decisionkit.DomainCollection, 3},
		{"Show inventory levels in each warehouse", decisionkit.DomainLogistics, 2},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			a := c.Analyze(tt.query)
			assert.Equal(t, tt.want, a.PrimaryDomain)
			assert.True(t, a.IsClearMatch)
			assert.Equal(t, tt.score, a.Score(tt.want))
			assert.Empty(t, a.TiedDomains)
			assert.Len(t, a.DomainScores, 4)
		})
	}
}

func TestAnalyzeIsCaseInsensitive(t *testing.T) {
	a := NewClassifier(nil).Analyze("WAREHOUSE UTILIZATION AND SUPPLY CHAIN")
	assert.Equal(t, decisionkit.DomainLogistics, a.PrimaryDomain)
	assert.Equal(t, 2, a.Score(decisionkit.DomainLogistics))
}

func TestAnalyzeTieIsAmbiguousAndKeepsDomainOrder(t *testing.T) {
	a := NewClassifier(nil).Analyze("sales and shipping")

	assert.Equal(t, decisionkit.DomainSales, a.PrimaryDomain)
	assert.False(t, a.IsClearMatch)
	assert.Equal(t, []decisionkit.Domain{decisionkit.DomainSales, decisionkit.DomainLogistics}, a.TiedDomains)
	assert.Equal(t, []decisionkit.Domain{decisionkit.DomainLogistics}, a.SecondaryDomains)
}

func TestAnalyzeOverlappingKeywords(t *testing.T) {
	// "customer acquisition" scores marketing, "customer" scores sales
	a := NewClassifier(nil).Analyze("customer acquisition cost")

	assert.Equal(t, decisionkit.DomainMarketing, a.PrimaryDomain)
	assert.False(t, a.IsClearMatch)
	assert.Equal(t, 1, a.Score(decisionkit.DomainMarketing))
	assert.Equal(t, 1, a.Score(decisionkit.DomainSales))
}

func TestAnalyzeSecondaryDomainsWithClearWinner(t *testing.T) {
	a := NewClassifier(nil).Analyze("sales revenue by customer and shipping delays")

	assert.Equal(t, decisionkit.DomainSales, a.PrimaryDomain)
	assert.True(t, a.IsClearMatch)
	assert.Equal(t, 3, a.Score(decisionkit.DomainSales))
	assert.Equal(t, []decisionkit.Domain{decisionkit.DomainLogistics}, a.SecondaryDomains)
	assert.Equal(t, []decisionkit.Domain{decisionkit.DomainSales, decisionkit.DomainLogistics}, a.RankedDomains())
}

func TestAnalyzeUnknown(t *testing.T) {
	a := NewClassifier(nil).Analyze("Hello there")

	assert.Equal(t, decisionkit.DomainUnknown, a.PrimaryDomain)
	assert.True(t, a.IsClearMatch)
	assert.Empty(t, a.SecondaryDomains)
	for _, d := range decisionkit.AllDomains() {
		assert.Equal(t, 0, a.Score(d))
	}
}

func TestKeywordCountsOncePerQuery(t *testing.T) {
	a := NewClassifier(nil).Analyze("brand brand brand")
	assert.Equal(t, 1, a.Score(decisionkit.DomainMarketing))
}

func TestExtraKeywords(t *testing.T) {
	c := NewClassifier(Keywords{
		decisionkit.DomainLogistics: {"Freight", "freight", " "},
	})
	a := c.Analyze("freight costs")
	assert.Equal(t, decisionkit.DomainLogistics, a.PrimaryDomain)

	words := c.Keywords()[decisionkit.DomainLogistics]
	count := 0
	for _, w := range words {
		if w == "freight" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
