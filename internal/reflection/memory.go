package reflection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/memory"
)

// Consolidation triggers: memory grows past either bound and maintenance
// runs.
const (
	consolidateEpisodeCount = 50
	consolidateFactCount    = 200
)

// Insight is one cross-session observation about accumulated memory.
type Insight struct {
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// MemoryAnalysis is the output of a cross-session reflection pass.
type MemoryAnalysis struct {
	Insights          []Insight
	KnowledgeGaps     []string
	ConsolidationRan  bool
	MaintenanceReport *memory.MaintenanceReport
}

// MemoryReflector analyzes accumulated memory across sessions: topic
// patterns, strategy effectiveness, and knowledge gaps.
type MemoryReflector struct {
	system *memory.System
	logger logging.Logger
}

// NewMemoryReflector creates a cross-session reflector over the memory
// system.
func NewMemoryReflector(system *memory.System, logger logging.Logger) *MemoryReflector {
	return &MemoryReflector{system: system, logger: logging.OrNop(logger)}
}

// Analyze runs the full cross-session pass and triggers consolidation when
// memory has grown past its bounds.
func (r *MemoryReflector) Analyze(ctx context.Context) (*MemoryAnalysis, error) {
	analysis := &MemoryAnalysis{}

	topicInsights, err := r.analyzeTopicPatterns(ctx)
	if err != nil {
		return nil, err
	}
	analysis.Insights = append(analysis.Insights, topicInsights...)

	strategyInsights, err := r.analyzeStrategyEffectiveness(ctx)
	if err != nil {
		return nil, err
	}
	analysis.Insights = append(analysis.Insights, strategyInsights...)

	gaps, err := r.identifyKnowledgeGaps(ctx)
	if err != nil {
		return nil, err
	}
	analysis.KnowledgeGaps = gaps

	ran, report, err := r.TriggerConsolidationIfNeeded(ctx)
	if err != nil {
		return nil, err
	}
	analysis.ConsolidationRan = ran
	analysis.MaintenanceReport = report

	return analysis, nil
}

// analyzeTopicPatterns surfaces topics that keep coming back and topics that
// keep failing.
func (r *MemoryReflector) analyzeTopicPatterns(ctx context.Context) ([]Insight, error) {
	episodes, err := r.system.Episodic.AllEpisodes(ctx)
	if err != nil {
		return nil, err
	}

	type topicStats struct {
		total     int
		successes int
	}
	byTopic := make(map[string]*topicStats)
	for _, episode := range episodes {
		key := strings.ToLower(strings.TrimSpace(episode.Topic))
		if key == "" {
			continue
		}
		stats, ok := byTopic[key]
		if !ok {
			stats = &topicStats{}
			byTopic[key] = stats
		}
		stats.total++
		if episode.Success {
			stats.successes++
		}
	}

	var insights []Insight
	for topic, stats := range byTopic {
		if stats.total >= 3 {
			insights = append(insights, Insight{
				Kind:    "recurring-topic",
				Summary: fmt.Sprintf("Topic %q researched %d times (%d successful)", topic, stats.total, stats.successes),
			})
		}
		if stats.total >= 2 && stats.successes == 0 {
			insights = append(insights, Insight{
				Kind:    "failing-topic",
				Summary: fmt.Sprintf("Topic %q has failed every attempt (%d)", topic, stats.total),
			})
		}
	}
	sort.Slice(insights, func(i, j int) bool { return insights[i].Summary < insights[j].Summary })
	return insights, nil
}

// analyzeStrategyEffectiveness flags strategies that earn their keep and ones
// that should be retired.
func (r *MemoryReflector) analyzeStrategyEffectiveness(ctx context.Context) ([]Insight, error) {
	strategies, err := r.system.Procedural.ListStrategies(ctx)
	if err != nil {
		return nil, err
	}

	var insights []Insight
	for _, strategy := range strategies {
		if strategy.TimesUsed < 3 {
			continue
		}
		switch {
		case strategy.SuccessRate >= 0.7:
			insights = append(insights, Insight{
				Kind: "effective-strategy",
				Summary: fmt.Sprintf("Strategy %s succeeds %.0f%% of the time over %d uses",
					strategy.StrategyName, strategy.SuccessRate*100, strategy.TimesUsed),
			})
		case strategy.SuccessRate < 0.3:
			insights = append(insights, Insight{
				Kind: "ineffective-strategy",
				Summary: fmt.Sprintf("Strategy %s succeeds only %.0f%% of the time over %d uses; consider retiring it",
					strategy.StrategyName, strategy.SuccessRate*100, strategy.TimesUsed),
			})
		}
	}
	return insights, nil
}

// identifyKnowledgeGaps finds categories with few or low-confidence facts.
func (r *MemoryReflector) identifyKnowledgeGaps(ctx context.Context) ([]string, error) {
	facts, err := r.system.Semantic.CountFacts(ctx)
	if err != nil {
		return nil, err
	}
	if facts == 0 {
		return []string{"semantic memory is empty"}, nil
	}

	all, err := r.system.Semantic.AllFacts(ctx)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string][]float64)
	for _, fact := range all {
		byCategory[fact.Category] = append(byCategory[fact.Category], fact.Confidence)
	}

	var gaps []string
	for category, confidences := range byCategory {
		sum := 0.0
		for _, c := range confidences {
			sum += c
		}
		mean := sum / float64(len(confidences))
		if len(confidences) < 3 {
			gaps = append(gaps, fmt.Sprintf("category %q has only %d facts", category, len(confidences)))
		} else if mean < 0.5 {
			gaps = append(gaps, fmt.Sprintf("category %q averages low confidence (%.2f)", category, mean))
		}
	}
	sort.Strings(gaps)
	return gaps, nil
}

// CompareWithPrevious contrasts a finished session with earlier sessions on
// the same topic.
func (r *MemoryReflector) CompareWithPrevious(ctx context.Context, session *types.Session) ([]Insight, error) {
	matches, err := r.system.Episodic.SearchEpisodes(ctx, session.Topic, 5)
	if err != nil {
		return nil, err
	}

	var insights []Insight
	for _, match := range matches {
		if match.Episode.SessionID == session.ID {
			continue
		}
		insights = append(insights, Insight{
			Kind: "prior-session",
			Summary: fmt.Sprintf("Similar past research %q (similarity %.2f, success=%v): %s",
				match.Episode.Topic, match.Score, match.Episode.Success, match.Episode.Summary),
		})
	}
	return insights, nil
}

// TriggerConsolidationIfNeeded runs maintenance when either memory tier has
// grown past its bound.
func (r *MemoryReflector) TriggerConsolidationIfNeeded(ctx context.Context) (bool, *memory.MaintenanceReport, error) {
	episodes, err := r.system.Episodic.CountEpisodes(ctx)
	if err != nil {
		return false, nil, err
	}
	facts, err := r.system.Semantic.CountFacts(ctx)
	if err != nil {
		return false, nil, err
	}

	if episodes < consolidateEpisodeCount && facts < consolidateFactCount {
		return false, nil, nil
	}

	r.logger.Info("Memory grew to %d episodes / %d facts, running consolidation", episodes, facts)
	report, err := r.system.PerformMaintenance(ctx)
	if err != nil {
		return false, report, err
	}
	return true, report, nil
}
