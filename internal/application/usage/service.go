package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-app/accord/internal/domain/usage"
)

// Default per-feature entitlement expressions. Operators can override them
// with any govaluate expression over the exposed counters.
const (
	DefaultVerdictPolicy = "count_today < 3"
	DefaultHybridPolicy  = "count_today < 5"
)

type counter struct {
	total int
	today int
	day   time.Time
}

// Service implements the usage gate with per-user daily counters and
// compiled entitlement expressions.
type Service struct {
	policies map[usage.FeatureClass]*govaluate.EvaluableExpression
	logger   zerolog.Logger

	mu       sync.Mutex
	counters map[uuid.UUID]map[usage.FeatureClass]*counter
}

// NewService compiles the entitlement policy for each feature. An empty
// policy string selects the feature's default.
func NewService(policies map[usage.FeatureClass]string, logger zerolog.Logger) (*Service, error) {
	defaults := map[usage.FeatureClass]string{
		usage.FeatureVerdictPipeline:  DefaultVerdictPolicy,
		usage.FeatureHybridResolution: DefaultHybridPolicy,
	}
	compiled := make(map[usage.FeatureClass]*govaluate.EvaluableExpression, len(defaults))
	for feature, def := range defaults {
		src := policies[feature]
		if src == "" {
			src = def
		}
		expr, err := govaluate.NewEvaluableExpression(src)
		if err != nil {
			return nil, fmt.Errorf("compile usage policy for %s: %w", feature, err)
		}
		compiled[feature] = expr
	}
	return &Service{
		policies: compiled,
		counters: make(map[uuid.UUID]map[usage.FeatureClass]*counter),
		logger:   logger.With().Str("service", "usage").Logger(),
	}, nil
}

// CanUse evaluates the feature's entitlement policy against the user's
// current counters.
func (s *Service) CanUse(ctx context.Context, userID uuid.UUID, feature usage.FeatureClass) (bool, error) {
	expr, ok := s.policies[feature]
	if !ok {
		return true, nil
	}
	c := s.snapshot(userID, feature)
	result, err := expr.Evaluate(map[string]interface{}{
		"feature":     string(feature),
		"count_today": c.today,
		"count_total": c.total,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate usage policy: %w", err)
	}
	allowed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("usage policy for %s did not evaluate to a boolean", feature)
	}
	return allowed, nil
}

// Record increments the user's counters for a consumed feature use.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, feature usage.FeatureClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byFeature, ok := s.counters[userID]
	if !ok {
		byFeature = make(map[usage.FeatureClass]*counter)
		s.counters[userID] = byFeature
	}
	c, ok := byFeature[feature]
	if !ok {
		c = &counter{}
		byFeature[feature] = c
	}
	s.roll(c)
	c.total++
	c.today++
	s.logger.Debug().Str("user_id", userID.String()).Str("feature", string(feature)).Int("today", c.today).Msg("usage recorded")
	return nil
}

func (s *Service) snapshot(userID uuid.UUID, feature usage.FeatureClass) counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID][feature]
	if !ok {
		return counter{day: startOfDay(time.Now().UTC())}
	}
	s.roll(c)
	return *c
}

func (s *Service) roll(c *counter) {
	today := startOfDay(time.Now().UTC())
	if !c.day.Equal(today) {
		c.day = today
		c.today = 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
