package specialists

import (
	"fmt"
	"log/slog"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/llm"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// GeneralAgentName names the agent answering queries no domain matched.
const GeneralAgentName = "Decision Making Assistant"

// Profile describes one agent: its display name, instructions and tools.
type Profile struct {
	Domain       decisionkit.Domain
	Name         string
	Description  string
	Instructions string
	Tools        func(data.Provider) []decisionkit.Tool
}

var profiles = map[decisionkit.Domain]Profile{
	decisionkit.DomainMarketing: {
		Domain:       decisionkit.DomainMarketing,
		Name:         "Marketing Agent",
		Description:  "A specialized agent for marketing data analysis and insights",
		Instructions: marketingInstructions,
		Tools:        MarketingTools,
	},
	decisionkit.DomainSales: {
		Domain:       decisionkit.DomainSales,
		Name:         "Sales Agent",
		Description:  "A specialized agent for sales data analysis and insights",
		Instructions: salesInstructions,
		Tools:        SalesTools,
	},
	decisionkit.DomainLogistics: {
		Domain:       decisionkit.DomainLogistics,
		Name:         "Logistics Agent",
		Description:  "A specialized agent for logistics and supply chain analysis",
		Instructions: logisticsInstructions,
		Tools:        LogisticsTools,
	},
	decisionkit.DomainCollection: {
		Domain:       decisionkit.DomainCollection,
		Name:         "Collection Agent",
		Description:  "A specialized agent for accounts receivable and collections analysis",
		Instructions: collectionInstructions,
		Tools:        CollectionTools,
	},
}

// ProfileFor returns the profile of a domain; DomainUnknown yields the
// general assistant.
func ProfileFor(domain decisionkit.Domain) (Profile, bool) {
	if domain == decisionkit.DomainUnknown {
		return Profile{
			Name:         GeneralAgentName,
			Description:  "A general assistant with access to every business domain",
			Instructions: generalInstructions,
			Tools:        GeneralTools,
		}, true
	}
	p, ok := profiles[domain]
	return p, ok
}

// Options are shared by every agent built by this package.
type Options struct {
	LLM      llm.LLM
	Provider data.Provider
	MaxSteps int
	// CallOptions are applied to every completion after the LLMAgent
	// defaults.
	CallOptions []llm.CallOption
	// Decorate wraps the reasoning agent, e.g. with retry or rate limiting.
	Decorate func(decisionkit.Agent) decisionkit.Agent
	Logger   *slog.Logger
}

// New builds the agent for a domain (DomainUnknown = general assistant).
func New(domain decisionkit.Domain, opts Options) (*ReActAgent, error) {
	profile, ok := ProfileFor(domain)
	if !ok {
		return nil, fmt.Errorf("no specialist for domain %q", domain)
	}
	if opts.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("data provider is required")
	}

	callOpts := append([]llm.CallOption{llm.WithStop("\nObservation:")}, opts.CallOptions...)
	var reasoner decisionkit.Agent = llm.NewLLMAgent(profile.Name, opts.LLM, profile.Instructions, callOpts...)
	if opts.Decorate != nil {
		reasoner = opts.Decorate(reasoner)
	}

	return NewReActAgent(Config{
		Name:     profile.Name,
		Domain:   profile.Domain,
		Reasoner: reasoner,
		Tools:    profile.Tools(opts.Provider),
		MaxSteps: opts.MaxSteps,
		Logger:   opts.Logger,
	})
}

// NewAll builds the four domain specialists.
func NewAll(opts Options) (map[decisionkit.Domain]decisionkit.Agent, error) {
	agents := make(map[decisionkit.Domain]decisionkit.Agent, 4)
	for _, domain := range decisionkit.AllDomains() {
		agent, err := New(domain, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s specialist: %w", domain, err)
		}
		agents[domain] = agent
	}
	return agents, nil
}
