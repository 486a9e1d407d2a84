package memory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/token"
)

// DefaultContextTokens is the context budget when the caller passes none.
const DefaultContextTokens = 4000

// Budget split across the three tiers.
const (
	episodeBudgetShare  = 0.4
	factBudgetShare     = 0.4
	strategyBudgetShare = 0.2
)

// Retrieval fan-out per tier before budget trimming.
const (
	contextEpisodeK  = 5
	contextFactK     = 10
	contextStrategyK = 3
)

// Context is the budgeted memory slice handed to the reasoner.
type Context struct {
	Episodes   []EpisodeMatch
	Facts      []FactMatch
	Strategies []types.StrategyRecommendation

	EpisodesTruncated   bool
	FactsTruncated      bool
	StrategiesTruncated bool

	TokensUsed int
}

// ContextBuilder assembles reasoning context from the three memory tiers
// under a token budget.
type ContextBuilder struct {
	episodic   *EpisodicManager
	semantic   *SemanticManager
	procedural *ProceduralManager
	logger     logging.Logger
}

// NewContextBuilder creates a context builder over the memory tiers.
func NewContextBuilder(episodic *EpisodicManager, semantic *SemanticManager, procedural *ProceduralManager, logger logging.Logger) *ContextBuilder {
	return &ContextBuilder{
		episodic:   episodic,
		semantic:   semantic,
		procedural: procedural,
		logger:     logging.OrNop(logger),
	}
}

// BuildContext queries the three tiers in parallel and trims each section to
// its share of the token budget. A budget of zero or less uses the default.
// Failures in one tier degrade that section to empty rather than failing the
// whole build.
func (b *ContextBuilder) BuildContext(ctx context.Context, query string, availableTools []string, maxTokens int) (*Context, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokens
	}

	var (
		episodes   []EpisodeMatch
		facts      []FactMatch
		strategies []types.StrategyRecommendation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		episodes, err = b.episodic.SearchEpisodes(gctx, query, contextEpisodeK)
		if err != nil {
			b.logger.Warn("Episode retrieval failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		facts, err = b.semantic.SearchFacts(gctx, query, contextFactK)
		if err != nil {
			b.logger.Warn("Fact retrieval failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		strategies, err = b.procedural.GetRecommendations(gctx, query, availableTools, contextStrategyK)
		if err != nil {
			b.logger.Warn("Strategy retrieval failed: %v", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Context{}

	episodeBudget := int(float64(maxTokens) * episodeBudgetShare)
	used := 0
	for _, match := range episodes {
		cost := token.Count(episodeLine(match.Episode))
		if used+cost > episodeBudget {
			result.EpisodesTruncated = true
			break
		}
		used += cost
		result.Episodes = append(result.Episodes, match)
	}
	result.TokensUsed += used

	factBudget := int(float64(maxTokens) * factBudgetShare)
	used = 0
	for _, match := range facts {
		cost := token.Count(factLine(match.Fact))
		if used+cost > factBudget {
			result.FactsTruncated = true
			break
		}
		used += cost
		result.Facts = append(result.Facts, match)
	}
	result.TokensUsed += used

	strategyBudget := int(float64(maxTokens) * strategyBudgetShare)
	used = 0
	for _, rec := range strategies {
		cost := token.Count(strategyLine(rec))
		if used+cost > strategyBudget {
			result.StrategiesTruncated = true
			break
		}
		used += cost
		result.Strategies = append(result.Strategies, rec)
	}
	result.TokensUsed += used

	b.logger.Debug("Built context: %d episodes, %d facts, %d strategies, %d tokens",
		len(result.Episodes), len(result.Facts), len(result.Strategies), result.TokensUsed)
	return result, nil
}

// FormatForPrompt renders the context as prompt sections. Empty sections are
// omitted; truncated sections carry a marker so the model knows the list is
// partial.
func (c *Context) FormatForPrompt() string {
	var sb strings.Builder

	if len(c.Episodes) > 0 {
		sb.WriteString("Past Experiences:\n")
		for _, match := range c.Episodes {
			fmt.Fprintf(&sb, "- %s\n", episodeLine(match.Episode))
		}
		if c.EpisodesTruncated {
			sb.WriteString("(older experiences omitted for space)\n")
		}
		sb.WriteString("\n")
	}

	if len(c.Facts) > 0 {
		sb.WriteString("Known Facts:\n")
		for _, match := range c.Facts {
			fmt.Fprintf(&sb, "- %s\n", factLine(match.Fact))
		}
		if c.FactsTruncated {
			sb.WriteString("(additional facts omitted for space)\n")
		}
		sb.WriteString("\n")
	}

	if len(c.Strategies) > 0 {
		sb.WriteString("Effective Strategies:\n")
		for _, rec := range c.Strategies {
			fmt.Fprintf(&sb, "- %s\n", strategyLine(rec))
		}
		if c.StrategiesTruncated {
			sb.WriteString("(lower-ranked strategies omitted for space)\n")
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func episodeLine(episode types.EpisodicMemory) string {
	status := "failed"
	if episode.Success {
		status = "succeeded"
	}
	return fmt.Sprintf("%s (%s): %s", episode.Topic, status, episode.Summary)
}

func factLine(fact types.Fact) string {
	return fmt.Sprintf("[%s] %s (confidence %.2f)", fact.Category, fact.Content, fact.Confidence)
}

func strategyLine(rec types.StrategyRecommendation) string {
	return fmt.Sprintf("%s: %s (%s)", rec.Strategy.StrategyName, rec.Strategy.Description, rec.Reasoning)
}
