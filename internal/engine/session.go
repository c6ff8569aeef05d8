// Package engine implements a small forward-chaining rule session over the
// rule model. It evaluates conjunctive rules to a fixpoint, recording for
// every derived fact the provenance trace of (matched item, condition) pairs
// that produced it, and exposes working memory as immutable snapshots for
// the explanation extractor.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rulelens/internal/explain"
	"rulelens/internal/rules"
)

// Config holds session limits.
type Config struct {
	FactLimit     int `json:"fact_limit" yaml:"fact_limit"`
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:     100000,
		MaxIterations: 64,
	}
}

// Recorder is the optional durability hook for session activity. Only facts
// and firings are journaled; graphs never are.
type Recorder interface {
	RecordFact(ctx context.Context, sessionID, factID, factType string, payload any) error
	RecordFiring(ctx context.Context, sessionID, ruleID, factID string) error
}

// Session is one live engine instance: a rule set plus working memory.
type Session struct {
	mu       sync.RWMutex
	id       string
	config   Config
	rules    []*rules.Rule
	plans    []*rulePlan
	facts    []*explain.Fact
	seen     map[string]*explain.Fact
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a session.
type Option func(*Session)

// WithLogger attaches a logger; the default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder attaches a durability recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession creates a session over the given rule set.
func NewSession(cfg Config, rs []*rules.Rule, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		config: cfg,
		seen:   make(map[string]*explain.Fact),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setRulesLocked(rs)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ReplaceRules swaps the session's rule set, recompiling execution plans.
// Working memory is kept.
func (s *Session) ReplaceRules(rs []*rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRulesLocked(rs)
}

func (s *Session) setRulesLocked(rs []*rules.Rule) {
	s.rules = rs
	s.plans = s.plans[:0]
	for _, r := range rs {
		plan, err := compile(r)
		if err != nil {
			// Non-executable rules still participate in the static
			// logic graph; they just never fire here.
			s.logger.Warn("rule not executable",
				zap.String("rule", r.Name),
				zap.Error(err))
			continue
		}
		s.plans = append(s.plans, plan)
	}
}

// Rules returns the session's rule definitions.
func (s *Session) Rules() []*rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*rules.Rule(nil), s.rules...)
}

// Assert adds an externally provided fact to working memory. Asserted facts
// carry no provenance trace.
func (s *Session) Assert(ctx context.Context, typeName string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addLocked(ctx, &explain.Fact{
		Type:  rules.TypeRef{Name: typeName},
		Value: value,
	}, "")
	return err
}

// Run evaluates rules to a fixpoint. Every fact a rule derives is recorded
// with the trace of matches that produced it; a fact already in working
// memory is never re-derived, so the first derivation's provenance wins.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for iter := 0; iter < s.config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		added := 0
		for _, plan := range s.plans {
			for _, m := range plan.matches(s.facts) {
				for _, f := range plan.produce(m) {
					f.Trace = append(explain.Trace(nil), m.supports...)
					ok, err := s.addLocked(ctx, f, plan.ruleID)
					if err != nil {
						return err
					}
					if ok {
						added++
					}
				}
			}
		}
		if added == 0 {
			s.logger.Debug("fixpoint reached",
				zap.String("session", s.id),
				zap.Int("iterations", iter+1),
				zap.Int("facts", len(s.facts)))
			return nil
		}
	}
	return fmt.Errorf("no fixpoint after %d iterations", s.config.MaxIterations)
}

func (s *Session) addLocked(ctx context.Context, f *explain.Fact, ruleID string) (bool, error) {
	if s.config.FactLimit > 0 && len(s.facts) >= s.config.FactLimit {
		return false, fmt.Errorf("fact limit exceeded: %d", s.config.FactLimit)
	}

	id := explain.FactID(f)
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.facts = append(s.facts, f)
	s.seen[id] = f

	if s.recorder != nil {
		if err := s.recorder.RecordFact(ctx, s.id, id, f.Type.Symbolic(), f.Value); err != nil {
			return false, fmt.Errorf("record fact %s: %w", id, err)
		}
		if ruleID != "" {
			if err := s.recorder.RecordFiring(ctx, s.id, ruleID, id); err != nil {
				return false, fmt.Errorf("record firing for %s: %w", id, err)
			}
		}
	}
	return true, nil
}

// Snapshot returns a point-in-time copy of working memory and provenance,
// taken atomically. The copy shares nothing mutable with the session:
// callers needing consistent explanations across several fact identifiers
// must take them from one snapshot.
func (s *Session) Snapshot() *explain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clones := make(map[*explain.Fact]*explain.Fact, len(s.facts))
	snap := &explain.Snapshot{Facts: make([]*explain.Fact, 0, len(s.facts))}
	for _, f := range s.facts {
		c := &explain.Fact{Type: f.Type, Value: f.Value}
		clones[f] = c
		snap.Facts = append(snap.Facts, c)
	}
	for _, f := range s.facts {
		if f.Trace == nil {
			continue
		}
		trace := make(explain.Trace, len(f.Trace))
		for i, sup := range f.Trace {
			trace[i] = explain.Support{
				Fact:      clones[sup.Fact],
				Value:     sup.Value,
				Condition: sup.Condition,
			}
		}
		clones[f].Trace = trace
	}
	return snap
}
