package observability

import (
	"context"
	"errors"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// routedAgent answers with routing metadata like the triage agent does.
type routedAgent struct {
	domain string
	err    error
}

func (a *routedAgent) Name() string           { return "Triage Agent" }
func (a *routedAgent) Capabilities() []string { return []string{"routing"} }

func (a *routedAgent) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	if a.err != nil {
		return nil, a.err
	}
	return decisionkit.NewMessage("agent", "answer").
		WithMetadata("routed_domain", a.domain).
		WithMetadata("routed_agent", a.domain+"_agent").
		WithMetadata("is_clear_match", true), nil
}

var errUpstream = errors.New("upstream down")
