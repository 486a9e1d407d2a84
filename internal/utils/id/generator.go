package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers using KSUID.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces prefixed identifiers for agent records.
type Generator struct {
	mu       sync.RWMutex
	strategy Strategy
}

// SetStrategy configures the generation strategy for the default generator.
func SetStrategy(strategy Strategy) {
	defaultGenerator.setStrategy(strategy)
}

func (g *Generator) setStrategy(strategy Strategy) {
	g.mu.Lock()
	g.strategy = strategy
	g.mu.Unlock()
}

// NewSessionID generates a new session identifier with a stable prefix for display.
func NewSessionID() string {
	return defaultGenerator.newIdentifier("session")
}

// NewActionID generates a new action identifier.
func NewActionID() string {
	return defaultGenerator.newIdentifier("action")
}

// NewPlanID generates a new research plan identifier.
func NewPlanID() string {
	return defaultGenerator.newIdentifier("plan")
}

// NewEpisodeID generates a new episodic memory identifier.
func NewEpisodeID() string {
	return defaultGenerator.newIdentifier("episode")
}

// NewFactID generates a new semantic memory identifier.
func NewFactID() string {
	return defaultGenerator.newIdentifier("fact")
}

// NewStrategyID generates a new procedural memory identifier.
func NewStrategyID() string {
	return defaultGenerator.newIdentifier("strategy")
}

// NewReflectionID generates a new reflection identifier.
func NewReflectionID() string {
	return defaultGenerator.newIdentifier("reflection")
}

// NewFindingID generates a new finding identifier.
func NewFindingID() string {
	return defaultGenerator.newIdentifier("finding")
}

func (g *Generator) newIdentifier(prefix string) string {
	g.mu.RLock()
	strategy := g.strategy
	g.mu.RUnlock()

	var body string
	switch strategy {
	case StrategyUUIDv7:
		uuidv7, err := uuid.NewV7()
		if err == nil {
			body = uuidv7.String()
			break
		}
		fallthrough
	case StrategyKSUID:
		body = ksuid.New().String()
	default:
		body = ksuid.New().String()
	}

	return fmt.Sprintf("%s-%s", prefix, body)
}

// NewKSUID exposes raw KSUID generation for callers that need unprefixed identifiers.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewUUIDv7 exposes raw UUIDv7 generation for callers that need unprefixed identifiers.
func NewUUIDv7() string {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		return ""
	}
	return uuidv7.String()
}
