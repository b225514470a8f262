package workflow

import (
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/graph/emit"
	"github.com/roadmapforge/orchestrator/graph/store"
	"github.com/roadmapforge/orchestrator/nodes"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// Config collects every dependency Build needs to assemble the graph: the
// agent implementations each node runner calls, the shared Brain, the
// three optional-node presence flags, and the engine's
// persistence/observability plumbing.
type Config struct {
	Intent     agent.IntentAgent
	Curriculum agent.CurriculumAgent
	Validator  agent.ValidatorAgent // required unless SkipStructureValidation
	EditPlan   agent.EditPlanAgent
	Editor     agent.EditorAgent
	Scheduler  nodes.ContentScheduler // required unless SkipContentFanOut

	Brain *brain.Brain

	// MaxRetry bounds the validation<->edit cycle: once ModificationCount
	// reaches MaxRetry, a failing validation still routes forward instead
	// of back to the edit node.
	MaxRetry int

	// RetryPolicy, when non-nil, is attached to every agent-calling node
	// (intent, curriculum, validation, the two edit-plan nodes, edit).
	// Human Review and Content Fan-out manage their own retry semantics
	// and never receive this policy.
	RetryPolicy *graph.RetryPolicy

	SkipStructureValidation bool
	SkipHumanReview         bool
	SkipContentFanOut       bool

	Store              store.Store[roadmap.RoadmapState]
	Emitter            emit.Emitter
	MaxSteps           int
	DefaultNodeTimeout time.Duration
	Metrics            *graph.PrometheusMetrics
}

// Build assembles a graph.Engine[roadmap.RoadmapState] wiring every nodes.*
// runner per the static topology:
//
//	intent_analysis -> curriculum_design -> [structure_validation?] <->
//	  [edit_plan_analysis -> roadmap_edit] -> [human_review?] ->
//	  [content_fan_out?] -> end
//
// Each "?" node is wired in only when its Skip flag is false; routing
// targets downstream of an absent node fall through to the next present
// one, terminating the run when none remain.
func Build(cfg Config) (*graph.Engine[roadmap.RoadmapState], error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	hasSV := !cfg.SkipStructureValidation
	hasHR := !cfg.SkipHumanReview
	hasCFO := !cfg.SkipContentFanOut

	afterCurriculum, err := firstPresentNode(hasSV, hasHR, hasCFO)
	if err != nil {
		return nil, fmt.Errorf("workflow: build: %w", err)
	}

	afterValidationPass := func(roadmap.RoadmapState) graph.Next {
		if hasHR {
			return graph.Goto(nodes.NodeHumanReview)
		}
		if hasCFO {
			return graph.Goto(nodes.NodeContentFanOut)
		}
		return graph.Stop()
	}

	afterApproval := func(roadmap.RoadmapState) graph.Next {
		if hasCFO {
			return graph.Goto(nodes.NodeContentFanOut)
		}
		return graph.Stop()
	}

	editNext := nodes.NodeCurriculumDesign
	if hasSV {
		editNext = nodes.NodeStructureValidation
	}

	opts := []graph.Option{}
	if cfg.MaxSteps > 0 {
		opts = append(opts, graph.WithMaxSteps(cfg.MaxSteps))
	}
	if cfg.DefaultNodeTimeout > 0 {
		opts = append(opts, graph.WithDefaultNodeTimeout(cfg.DefaultNodeTimeout))
	}
	if cfg.Metrics != nil {
		opts = append(opts, graph.WithMetrics(cfg.Metrics))
	}

	engine := graph.New[roadmap.RoadmapState](roadmap.Reduce, cfg.Store, cfg.Emitter, opts...)

	addAgentNode := func(id string, node graph.Node[roadmap.RoadmapState]) error {
		if cfg.RetryPolicy != nil {
			return engine.AddWithPolicy(id, node, &graph.NodePolicy{RetryPolicy: cfg.RetryPolicy})
		}
		return engine.Add(id, node)
	}

	if err := addAgentNode(nodes.NodeIntentAnalysis, nodes.IntentAnalysis{
		Agent: cfg.Intent, Brain: cfg.Brain, Next: nodes.NodeCurriculumDesign,
	}); err != nil {
		return nil, err
	}

	if err := addAgentNode(nodes.NodeCurriculumDesign, nodes.CurriculumDesign{
		Agent: cfg.Curriculum, Brain: cfg.Brain, Next: afterCurriculum,
	}); err != nil {
		return nil, err
	}

	if hasSV {
		if err := addAgentNode(nodes.NodeStructureValidation, nodes.StructureValidation{
			Agent: cfg.Validator, Brain: cfg.Brain, MaxRetry: cfg.MaxRetry,
			EditNode: nodes.NodeValidationEditPlanAnalysis, OnPass: afterValidationPass,
		}); err != nil {
			return nil, err
		}
	}

	if hasSV || hasHR {
		if err := addAgentNode(nodes.NodeRoadmapEdit, nodes.RoadmapEdit{
			Agent: cfg.Editor, Brain: cfg.Brain, Next: editNext,
		}); err != nil {
			return nil, err
		}
	}

	if hasSV {
		if err := addAgentNode(nodes.NodeValidationEditPlanAnalysis, nodes.EditPlanAnalysis{
			Agent: cfg.EditPlan, Brain: cfg.Brain, Source: roadmap.EditSourceValidationFailed,
			NodeID: nodes.NodeValidationEditPlanAnalysis, Next: nodes.NodeRoadmapEdit,
		}); err != nil {
			return nil, err
		}
	}

	if hasHR {
		if err := addAgentNode(nodes.NodeHumanFeedbackEditPlan, nodes.EditPlanAnalysis{
			Agent: cfg.EditPlan, Brain: cfg.Brain, Source: roadmap.EditSourceHumanReview,
			NodeID: nodes.NodeHumanFeedbackEditPlan, Next: nodes.NodeRoadmapEdit,
		}); err != nil {
			return nil, err
		}

		if err := engine.Add(nodes.NodeHumanReview, nodes.HumanReview{
			Brain: cfg.Brain, ApprovedNext: afterApproval, ModifyNext: nodes.NodeHumanFeedbackEditPlan,
		}); err != nil {
			return nil, err
		}
	}

	if hasCFO {
		if err := engine.Add(nodes.NodeContentFanOut, nodes.ContentFanOut{Scheduler: cfg.Scheduler}); err != nil {
			return nil, err
		}
	}

	if err := engine.StartAt(nodes.NodeIntentAnalysis); err != nil {
		return nil, fmt.Errorf("workflow: build: %w", err)
	}
	return engine, nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Intent == nil:
		return fmt.Errorf("workflow: build: Intent agent is required")
	case cfg.Curriculum == nil:
		return fmt.Errorf("workflow: build: Curriculum agent is required")
	case cfg.EditPlan == nil:
		return fmt.Errorf("workflow: build: EditPlan agent is required")
	case cfg.Editor == nil:
		return fmt.Errorf("workflow: build: Editor agent is required")
	case cfg.Brain == nil:
		return fmt.Errorf("workflow: build: Brain is required")
	case cfg.Store == nil:
		return fmt.Errorf("workflow: build: Store is required")
	case cfg.Emitter == nil:
		return fmt.Errorf("workflow: build: Emitter is required")
	case !cfg.SkipStructureValidation && cfg.Validator == nil:
		return fmt.Errorf("workflow: build: Validator agent is required unless SkipStructureValidation")
	case !cfg.SkipContentFanOut && cfg.Scheduler == nil:
		return fmt.Errorf("workflow: build: Scheduler is required unless SkipContentFanOut")
	}
	return nil
}

// firstPresentNode picks curriculum_design's routing target: the first of
// structure_validation, human_review, content_fan_out that is enabled.
// Returns an error if all three are skipped, since curriculum_design's
// Next must always name a registered node.
func firstPresentNode(hasSV, hasHR, hasCFO bool) (string, error) {
	switch {
	case hasSV:
		return nodes.NodeStructureValidation, nil
	case hasHR:
		return nodes.NodeHumanReview, nil
	case hasCFO:
		return nodes.NodeContentFanOut, nil
	}
	return "", fmt.Errorf("no downstream node configured after curriculum design: at least one of structure validation, human review, or content fan-out must be enabled")
}
