package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/memory"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/specialists"
)

// AgentName is the name the router reports to callers.
const AgentName = "Triage Agent"

// DefaultHistoryLimit is the number of prior turns handed to a specialist.
const DefaultHistoryLimit = 10

// errorReplyPrefix starts the reply text when a specialist fails.
const errorReplyPrefix = "An error occurred while processing your query: "

// FreshnessSource reports when each domain's data was last refreshed.
type FreshnessSource interface {
	Freshness() map[decisionkit.Domain]string
}

// QueryValidator screens a question before it is classified.
type QueryValidator interface {
	Validate(query string) error
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithGeneralAgent sets the agent answering queries no domain matched.
func WithGeneralAgent(agent decisionkit.Agent) RouterOption {
	return func(r *Router) { r.general = agent }
}

// WithMemory sets the conversation store used by ProcessQuery.
func WithMemory(mem memory.Memory) RouterOption {
	return func(r *Router) { r.memory = mem }
}

// WithFreshness sets the data freshness source reported by SystemStatus.
func WithFreshness(src FreshnessSource) RouterOption {
	return func(r *Router) { r.freshness = src }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// WithHistoryLimit sets how many prior messages reach the specialist.
func WithHistoryLimit(n int) RouterOption {
	return func(r *Router) { r.historyLimit = n }
}

// WithQueryValidator rejects questions before ProcessQuery routes them.
func WithQueryValidator(v QueryValidator) RouterOption {
	return func(r *Router) { r.validator = v }
}

// WithMiddleware wraps the router for ProcessQuery calls, e.g. with
// tracing or metrics. Wrappers are applied in order, the last outermost.
func WithMiddleware(wrap ...func(decisionkit.Agent) decisionkit.Agent) RouterOption {
	return func(r *Router) { r.wrappers = append(r.wrappers, wrap...) }
}

// Router is the triage agent: it classifies each query and delegates it
// to the specialist of the primary domain.
type Router struct {
	classifier   *Classifier
	mu           sync.RWMutex
	specialists  map[decisionkit.Domain]decisionkit.Agent
	general      decisionkit.Agent
	memory       memory.Memory
	freshness    FreshnessSource
	logger       *slog.Logger
	historyLimit int
	validator    QueryValidator
	wrappers     []func(decisionkit.Agent) decisionkit.Agent
	pipeline     decisionkit.Agent
}

var _ decisionkit.Agent = (*Router)(nil)

// NewRouter creates a router. A nil classifier uses the default keywords.
func NewRouter(classifier *Classifier, opts ...RouterOption) *Router {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	r := &Router{
		classifier:   classifier,
		specialists:  make(map[decisionkit.Domain]decisionkit.Agent),
		logger:       slog.Default(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	var pipeline decisionkit.Agent = r
	for _, wrap := range r.wrappers {
		pipeline = wrap(pipeline)
	}
	r.pipeline = pipeline
	return r
}

// RegisterSpecialists adds specialists; an existing domain is replaced.
func (r *Router) RegisterSpecialists(agents map[decisionkit.Domain]decisionkit.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for domain, agent := range agents {
		r.specialists[domain] = agent
	}
}

// Classifier returns the router's classifier.
func (r *Router) Classifier() *Classifier { return r.classifier }

// Name implements decisionkit.Agent.
func (r *Router) Name() string { return AgentName }

// Capabilities implements decisionkit.Agent.
func (r *Router) Capabilities() []string {
	return []string{"routing", "classification"}
}

// route picks the agent for an analysis. The returned domain is "unknown"
// when the general agent answers.
func (r *Router) route(analysis Analysis) (decisionkit.Domain, decisionkit.Agent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if analysis.PrimaryDomain != decisionkit.DomainUnknown {
		if agent, ok := r.specialists[analysis.PrimaryDomain]; ok {
			return analysis.PrimaryDomain, agent
		}
	}
	return decisionkit.DomainUnknown, r.general
}

// Process classifies the message and delegates it. Ties go to the first
// tied domain in domain order.
func (r *Router) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	if message == nil {
		return nil, apperrors.NewInvalidQueryError("message cannot be nil")
	}
	analysis := r.classifier.Analyze(message.Content)
	domain, agent := r.route(analysis)

	logger := r.logger.With("conversation_id", message.MetadataString("conversation_id"))
	if agent == nil {
		logger.WarnContext(ctx, "no agent for query", "primary_domain", analysis.PrimaryDomain)
		return nil, apperrors.NewUnknownDomainError("", message.Content)
	}
	if !analysis.IsClearMatch {
		logger.InfoContext(ctx, "ambiguous query", "tied_domains", analysis.TiedDomains, "routed_domain", domain)
	}
	logger.DebugContext(ctx, "routing query", "domain", domain, "agent", agent.Name(), "scores", analysis.DomainScores)

	forward := decisionkit.NewMessage(message.Role, message.Content)
	for k, v := range message.Metadata {
		forward.Metadata[k] = v
	}
	forward.WithMetadata("domain", string(domain))

	response, err := agent.Process(ctx, forward)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", agent.Name(), err)
	}

	scores := make(map[string]int, len(analysis.DomainScores))
	for d, s := range analysis.DomainScores {
		scores[string(d)] = s
	}
	secondary := make([]string, 0, len(analysis.SecondaryDomains))
	for _, d := range analysis.SecondaryDomains {
		secondary = append(secondary, string(d))
	}

	response.WithMetadata("routed_domain", string(domain)).
		WithMetadata("routed_agent", agent.Name()).
		WithMetadata("is_clear_match", analysis.IsClearMatch).
		WithMetadata("domain_scores", scores).
		WithMetadata("secondary_domains", secondary)
	if id := message.MetadataString("conversation_id"); id != "" {
		response.WithMetadata("conversation_id", id)
	}
	if !analysis.IsClearMatch {
		tied := make([]string, 0, len(analysis.TiedDomains))
		for _, d := range analysis.TiedDomains {
			tied = append(tied, string(d))
		}
		response.WithMetadata("ambiguous", true).WithMetadata("tied_domains", tied)
	}
	return response, nil
}

// QueryResult is the outcome of ProcessQuery.
type QueryResult struct {
	Response       string             `json:"response"`
	Agent          string             `json:"agent"`
	Domain         decisionkit.Domain `json:"domain"`
	RoutedAgent    string             `json:"routed_agent,omitempty"`
	ConversationID string             `json:"conversation_id"`
	IsClearMatch   bool               `json:"is_clear_match"`
	// Err holds the failure behind an error reply; Response then carries
	// the user-facing error text.
	Err error `json:"-"`
}

// NewConversationID returns a 16 hex character id.
func NewConversationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// ProcessQuery answers one question within a conversation. An empty
// conversationID starts a new conversation. Specialist failures do not
// return an error: the reply text describes the failure and Err is set.
func (r *Router) ProcessQuery(ctx context.Context, query, conversationID string) (*QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidQueryError("Query is required")
	}
	if r.validator != nil {
		if err := r.validator.Validate(query); err != nil {
			return nil, err
		}
	}
	if conversationID == "" {
		conversationID = NewConversationID()
	}

	msg := decisionkit.NewMessage("user", query).WithMetadata("conversation_id", conversationID)
	if history := r.history(ctx, conversationID); history != "" {
		msg.WithMetadata(specialists.HistoryKey, history)
	}

	analysis := r.classifier.Analyze(query)
	result := &QueryResult{
		Agent:          AgentName,
		Domain:         analysis.PrimaryDomain,
		ConversationID: conversationID,
		IsClearMatch:   analysis.IsClearMatch,
	}

	response, err := r.pipeline.Process(ctx, msg)
	if err != nil {
		r.logger.ErrorContext(ctx, "error processing query", "conversation_id", conversationID, "error", err)
		result.Response = errorReplyPrefix + err.Error()
		result.Err = err
	} else {
		result.Response = response.Content
		result.RoutedAgent = response.MetadataString("routed_agent")
		if d := response.MetadataString("routed_domain"); d != "" {
			result.Domain = decisionkit.Domain(d)
		}
	}

	r.remember(ctx, conversationID, msg, decisionkit.NewMessage("assistant", result.Response).
		WithMetadata("domain", string(result.Domain)))
	return result, nil
}

func (r *Router) history(ctx context.Context, conversationID string) string {
	if r.memory == nil {
		return ""
	}
	msgs, err := r.memory.Retrieve(ctx, conversationID, r.historyLimit)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to load conversation history", "conversation_id", conversationID, "error", err)
		return ""
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := "User"
		if m.Role != "user" {
			role = "Assistant"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func (r *Router) remember(ctx context.Context, conversationID string, turns ...*decisionkit.Message) {
	if r.memory == nil {
		return
	}
	for _, turn := range turns {
		stored := decisionkit.NewMessage(turn.Role, turn.Content)
		if d := turn.MetadataString("domain"); d != "" {
			stored.WithMetadata("domain", d)
		}
		if err := r.memory.Store(ctx, conversationID, stored); err != nil {
			r.logger.WarnContext(ctx, "failed to store conversation turn", "conversation_id", conversationID, "error", err)
			return
		}
	}
}

// AgentStatus describes one agent in SystemStatus.
type AgentStatus struct {
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
}

// Status is the system status report.
type Status struct {
	Agents        []AgentStatus     `json:"agents"`
	DataFreshness map[string]string `json:"data_freshness"`
}

// SystemStatus reports the registered agents and data freshness. Domains
// never refreshed report "unknown".
func (r *Router) SystemStatus(ctx context.Context) Status {
	r.mu.RLock()
	status := Status{
		Agents:        []AgentStatus{{Name: AgentName, Domain: "triage", Available: true}},
		DataFreshness: make(map[string]string, 4),
	}
	for _, d := range decisionkit.AllDomains() {
		as := AgentStatus{Domain: string(d)}
		if agent, ok := r.specialists[d]; ok {
			as.Name = agent.Name()
			as.Available = true
		}
		status.Agents = append(status.Agents, as)
	}
	if r.general != nil {
		status.Agents = append(status.Agents, AgentStatus{Name: r.general.Name(), Domain: "general", Available: true})
	}
	r.mu.RUnlock()

	var fresh map[decisionkit.Domain]string
	if r.freshness != nil {
		fresh = r.freshness.Freshness()
	}
	for _, d := range decisionkit.AllDomains() {
		ts := fresh[d]
		if ts == "" {
			ts = "unknown"
		}
		status.DataFreshness[string(d)] = ts
	}
	return status
}
