// Package types defines the data model shared by the agent core: sessions,
// plans, actions, outcomes, findings, memories, and reflections. Entities
// reference each other by identifier only; there is no owned object graph.
package types

import "time"

// Complexity estimates how involved a research goal is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Goal describes what a research session is trying to achieve. Immutable for
// the lifetime of a session.
type Goal struct {
	Description         string     `json:"description"`
	SuccessCriteria     []string   `json:"success_criteria"`
	Constraints         []string   `json:"constraints,omitempty"`
	EstimatedComplexity Complexity `json:"estimated_complexity"`
}

// SessionStatus tracks the lifecycle state of a research session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionPaused    SessionStatus = "paused"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is the root record of a research run.
type Session struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Topic           string        `json:"topic"`
	Goal            Goal          `json:"goal"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	ParentSessionID string        `json:"parent_session_id,omitempty"`
}

// Phase is a coarse state in the research lifecycle driving default action
// selection.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseGathering    Phase = "gathering"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseVerifying    Phase = "verifying"
	PhaseCompleted    Phase = "completed"
)

// phaseOrder encodes the forward-only lifecycle. Verifying is optional and
// slots in before synthesizing.
var phaseOrder = map[Phase]int{
	PhasePlanning:     0,
	PhaseGathering:    1,
	PhaseAnalyzing:    2,
	PhaseVerifying:    3,
	PhaseSynthesizing: 4,
	PhaseCompleted:    5,
}

// Before reports whether p precedes other in the research lifecycle.
func (p Phase) Before(other Phase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// Progress is the per-session progress record.
type Progress struct {
	StepsCompleted  int     `json:"steps_completed"`
	StepsTotal      int     `json:"steps_total"`
	SourcesGathered int     `json:"sources_gathered"`
	FactsExtracted  int     `json:"facts_extracted"`
	CurrentPhase    Phase   `json:"current_phase"`
	Confidence      float64 `json:"confidence"`
}

// StepStatus tracks the lifecycle of a planned step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// PlannedStep is one entry of a research plan.
type PlannedStep struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	Action          string     `json:"action"` // tool name or action type
	Dependencies    []string   `json:"dependencies,omitempty"`
	Status          StepStatus `json:"status"`
	ExpectedOutcome string     `json:"expected_outcome,omitempty"`
}

// ResearchPlan is an ordered list of steps toward a goal. Replanning produces
// a fresh plan; the old one is discarded.
type ResearchPlan struct {
	ID                string        `json:"id"`
	Strategy          string        `json:"strategy"`
	Steps             []PlannedStep `json:"steps"`
	EstimatedDuration int           `json:"estimated_duration"` // seconds
	CreatedAt         time.Time     `json:"created_at"`
	RevisedAt         *time.Time    `json:"revised_at,omitempty"`
	RevisionReason    string        `json:"revision_reason,omitempty"`
}

// ActionType enumerates the kinds of actions the reasoner can propose.
type ActionType string

const (
	ActionSearch     ActionType = "search"
	ActionFetch      ActionType = "fetch"
	ActionAnalyze    ActionType = "analyze"
	ActionExtract    ActionType = "extract"
	ActionVerify     ActionType = "verify"
	ActionSynthesize ActionType = "synthesize"
	ActionReflect    ActionType = "reflect"
	ActionReplan     ActionType = "replan"
)

// Action is a single tool invocation proposal produced by the reasoner.
// Parameters are bound by the control loop, not the reasoner.
type Action struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Type       ActionType `json:"type"`
	Tool       string     `json:"tool"`
	Parameters Params     `json:"parameters,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Strategy   string     `json:"strategy,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Outcome is the recorded result of executing an Action.
type Outcome struct {
	ActionID     string         `json:"action_id"`
	Success      bool           `json:"success"`
	Result       ActionResult   `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Observations []string       `json:"observations,omitempty"`
	Duration     time.Duration  `json:"duration"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// SourceType classifies the provenance of a finding.
type SourceType string

const (
	SourceAcademic SourceType = "academic"
	SourceNews     SourceType = "news"
	SourceWebpage  SourceType = "webpage"
)

// VerificationStatus marks how much trust a finding has earned.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationDisputed   VerificationStatus = "disputed"
)

// Source captures provenance for a finding.
type Source struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Type        SourceType `json:"type,omitempty"`
	Credibility float64    `json:"credibility,omitempty"` // [0,1]
}

// Finding is a piece of evidence with provenance extracted during research.
// Related findings are referenced by id and resolved against the store.
type Finding struct {
	ID                 string             `json:"id"`
	Content            string             `json:"content"`
	Source             Source             `json:"source"`
	Confidence         float64            `json:"confidence"`
	Relevance          float64            `json:"relevance"`
	Timestamp          time.Time          `json:"timestamp"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	RelatedFindings    []string           `json:"related_findings,omitempty"`
}

// WorkingMemoryWindow caps every working-memory list at the most recent
// entries.
const WorkingMemoryWindow = 20

// WorkingMemory holds bounded sliding windows of recent loop activity.
type WorkingMemory struct {
	RecentActions  []Action  `json:"recent_actions"`
	RecentOutcomes []Outcome `json:"recent_outcomes"`
	KeyFindings    []Finding `json:"key_findings"`
	OpenQuestions  []string  `json:"open_questions"`
	Hypotheses     []string  `json:"hypotheses"`
}

// Trim truncates every window to the most recent WorkingMemoryWindow entries.
func (wm *WorkingMemory) Trim() {
	wm.RecentActions = trimTail(wm.RecentActions, WorkingMemoryWindow)
	wm.RecentOutcomes = trimTail(wm.RecentOutcomes, WorkingMemoryWindow)
	wm.KeyFindings = trimTail(wm.KeyFindings, WorkingMemoryWindow)
	wm.OpenQuestions = trimTail(wm.OpenQuestions, WorkingMemoryWindow)
	wm.Hypotheses = trimTail(wm.Hypotheses, WorkingMemoryWindow)
}

func trimTail[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return items[len(items)-limit:]
}

// AgentState is the mutable per-iteration scratchpad co-owned with the
// session.
type AgentState struct {
	Goal                Goal          `json:"goal"`
	Plan                *ResearchPlan `json:"plan,omitempty"`
	Progress            Progress      `json:"progress"`
	WorkingMemory       WorkingMemory `json:"working_memory"`
	Reflections         []Reflection  `json:"reflections,omitempty"`
	IterationCount      int           `json:"iteration_count"`
	LastActionTimestamp time.Time     `json:"last_action_timestamp"`
}

// EpisodicMemory is one atomic unit of experience. Immutable once
// consolidated.
type EpisodicMemory struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Topic     string        `json:"topic"`
	Actions   []Action      `json:"actions"`
	Outcomes  []Outcome     `json:"outcomes"`
	Findings  []Finding     `json:"findings,omitempty"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Summary   string        `json:"summary"`
	Tags      []string      `json:"tags,omitempty"`
	Embedding []float32     `json:"embedding,omitempty"`
	Feedback  string        `json:"feedback,omitempty"`
}

// Fact is a consolidated declarative statement in semantic memory. Facts are
// mutable: consolidation merges duplicates and retrieval bumps access
// counters.
type Fact struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory,omitempty"`
	Source       string    `json:"source"` // episode id or free-form provenance
	Confidence   float64   `json:"confidence"`
	Relevance    float64   `json:"relevance"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	LastModified time.Time `json:"last_modified"`
	Tags         []string  `json:"tags,omitempty"`
	RelatedFacts []string  `json:"related_facts,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// Strategy is a named procedural pattern reusable across sessions.
type Strategy struct {
	ID                 string        `json:"id"`
	StrategyName       string        `json:"strategy_name"`
	Description        string        `json:"description"`
	ApplicableContexts []string      `json:"applicable_contexts,omitempty"`
	RequiredTools      []string      `json:"required_tools,omitempty"`
	SuccessRate        float64       `json:"success_rate"`
	AverageDuration    time.Duration `json:"average_duration"`
	TimesUsed          int           `json:"times_used"`
	Refinements        []string      `json:"refinements,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	LastUsed           *time.Time    `json:"last_used,omitempty"`
	LastRefined        *time.Time    `json:"last_refined,omitempty"`
}

// StrategyRecommendation ranks a stored strategy against a query.
type StrategyRecommendation struct {
	Strategy       Strategy `json:"strategy"`
	RelevanceScore float64  `json:"relevance_score"`
	Reasoning      string   `json:"reasoning"`
}

// ProgressAssessment is the quantitative half of a reflection.
type ProgressAssessment struct {
	ProgressRate        float64  `json:"progress_rate"`
	EstimatedCompletion float64  `json:"estimated_completion"` // iterations remaining
	IsOnTrack           bool     `json:"is_on_track"`
	Blockers            []string `json:"blockers,omitempty"`
	Achievements        []string `json:"achievements,omitempty"`
}

// StrategyRecommendationKind is the coarse verdict of a strategy evaluation.
type StrategyRecommendationKind string

const (
	RecommendContinue StrategyRecommendationKind = "continue"
	RecommendAdjust   StrategyRecommendationKind = "adjust"
	RecommendChange   StrategyRecommendationKind = "change"
)

// StrategyEvaluation is the qualitative half of a reflection.
type StrategyEvaluation struct {
	Effectiveness  float64                    `json:"effectiveness"`
	Recommendation StrategyRecommendationKind `json:"recommendation"`
	Strengths      []string                   `json:"strengths,omitempty"`
	Weaknesses     []string                   `json:"weaknesses,omitempty"`
	Alternatives   []string                   `json:"alternatives,omitempty"`
}

// Reflection is a meta-cognitive record of progress and strategy evaluation.
type Reflection struct {
	ID                 string             `json:"id"`
	SessionID          string             `json:"session_id"`
	IterationNumber    int                `json:"iteration_number"`
	Timestamp          time.Time          `json:"timestamp"`
	ActionsSummary     string             `json:"actions_summary,omitempty"`
	OutcomesSummary    string             `json:"outcomes_summary,omitempty"`
	ProgressAssessment ProgressAssessment `json:"progress_assessment"`
	StrategyEvaluation StrategyEvaluation `json:"strategy_evaluation"`
	Learnings          []string           `json:"learnings,omitempty"`
	ShouldReplan       bool               `json:"should_replan"`
	Adjustments        []string           `json:"adjustments,omitempty"`
	NextFocus          string             `json:"next_focus,omitempty"`
}

// Feedback attaches user feedback to a completed session.
type Feedback struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Rating    int       `json:"rating"` // 1-5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResearchResult is the final artifact of a research run.
type ResearchResult struct {
	SessionID            string        `json:"session_id"`
	Topic                string        `json:"topic"`
	Goal                 Goal          `json:"goal"`
	Synthesis            string        `json:"synthesis"`
	KeyFindings          []Finding     `json:"key_findings,omitempty"`
	Sources              []Source      `json:"sources,omitempty"`
	Confidence           float64       `json:"confidence"`
	Completeness         float64       `json:"completeness"`
	Duration             time.Duration `json:"duration"`
	TotalActions         int           `json:"total_actions"`
	TotalReflections     int           `json:"total_reflections"`
	StrategiesUsed       []string      `json:"strategies_used,omitempty"`
	SuccessfulApproaches []string      `json:"successful_approaches,omitempty"`
	Challenges           []string      `json:"challenges,omitempty"`
	Suggestions          []string      `json:"suggestions,omitempty"`
}

// ExecutionResult wraps the outcome of a whole research run. Errors never
// escape the loop; they land here.
type ExecutionResult struct {
	Success     bool            `json:"success"`
	Result      *ResearchResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Iterations  int             `json:"iterations"`
	Reflections int             `json:"reflections"`
}
