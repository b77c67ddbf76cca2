package decisionkit

import (
	"fmt"
	"strings"
)

// Domain is a business area a management query can belong to.
type Domain string

const (
	DomainMarketing  Domain = "marketing"
	DomainSales      Domain = "sales"
	DomainLogistics  Domain = "logistics"
	DomainCollection Domain = "collection"
	DomainUnknown    Domain = "unknown"
)

// AllDomains returns the routable domains in their fixed priority order.
// Classification ties are broken by this order.
func AllDomains() []Domain {
	return []Domain{DomainMarketing, DomainSales, DomainLogistics, DomainCollection}
}

// String implements fmt.Stringer.
func (d Domain) String() string {
	return string(d)
}

// Valid reports whether d is one of the four routable domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainMarketing, DomainSales, DomainLogistics, DomainCollection:
		return true
	}
	return false
}

// ParseDomain converts a user supplied name into a Domain.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "marketing":
		return DomainMarketing, nil
	case "sales":
		return DomainSales, nil
	case "logistics":
		return DomainLogistics, nil
	case "collection", "collections":
		return DomainCollection, nil
	}
	return DomainUnknown, fmt.Errorf("unknown domain %q (valid: marketing, sales, logistics, collection)", s)
}
