package data

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

// SampleDataset returns the built-in sample data for a domain. It is used
// whenever no endpoint is configured for that domain.
func SampleDataset(domain decisionkit.Domain) (Dataset, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("no sample data for domain %q", domain)
	}
	raw, err := fixtureFS.ReadFile("fixtures/" + domain.String() + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read sample %s data: %w", domain, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode sample %s data: %w", domain, err)
	}
	return ds, nil
}
