// Package agents holds the specialized agents and the runner for their fixed pipelines.
package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
)

// NotFoundError is returned for an unregistered agent type.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent type not found: %s", e.ID)
}

// Agent is a specialized agent with a fixed pipeline.
type Agent interface {
	Descriptor() Descriptor
	Stages() []Stage
	Finalize(st *State) Final
}

// StepExecutor runs a single plan step.
type StepExecutor interface {
	Execute(ctx context.Context, step execution.Step) execution.StepResult
}

// Retriever finds knowledge relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Chunk, error)
}

// Deps are shared by the built-in agents.
type Deps struct {
	Model     model.Generator
	Executor  StepExecutor
	Knowledge Retriever
}

// Status is the public view of a registered agent.
type Status struct {
	Descriptor
	Status        string     `json:"status"`
	LastExecution *time.Time `json:"lastExecution"`
}

// Registry maps agent ids to agents. It is built once at start-up.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	order  []string
	last   map[string]time.Time
}

// NewRegistry registers agents in order. Later duplicates replace earlier ones.
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{
		agents: make(map[string]Agent, len(agents)),
		last:   make(map[string]time.Time),
	}
	for _, a := range agents {
		id := a.Descriptor().ID
		if _, exists := r.agents[id]; !exists {
			r.order = append(r.order, id)
		}
		r.agents[id] = a
	}
	return r
}

// DefaultRegistry wires the catalog descriptors to the built-in agents.
func DefaultRegistry(deps Deps) (*Registry, error) {
	descs, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	agents := make([]Agent, 0, len(descs))
	for _, d := range descs {
		a, err := builtin(d, deps)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return NewRegistry(agents...), nil
}

func builtin(d Descriptor, deps Deps) (Agent, error) {
	switch d.ID {
	case "meeting-optimizer":
		return &meetingOptimizer{desc: d, model: deps.Model}, nil
	case "team-wellness":
		return &teamWellness{desc: d, model: deps.Model}, nil
	case "productivity-enhancer":
		return &productivityEnhancer{desc: d, model: deps.Model}, nil
	case "decision-facilitator":
		return &decisionFacilitator{desc: d, model: deps.Model, executor: deps.Executor}, nil
	case "knowledge-curator":
		return &knowledgeCurator{desc: d, model: deps.Model, knowledge: deps.Knowledge}, nil
	}
	return nil, fmt.Errorf("no implementation for agent %q", d.ID)
}

// Get returns the agent registered under id.
func (r *Registry) Get(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return a, nil
}

// List returns agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// MarkExecuted records the latest run time of an agent.
func (r *Registry) MarkExecuted(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[id] = at
}

// Statuses reports every agent with its last execution time.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.order))
	for _, id := range r.order {
		s := Status{Descriptor: r.agents[id].Descriptor(), Status: "active"}
		if t, ok := r.last[id]; ok {
			t := t
			s.LastExecution = &t
		}
		out = append(out, s)
	}
	return out
}
