// Package agent declares the typed contracts for every external
// collaborator a node runner calls: intent analysis, curriculum design,
// structure validation, edit planning, roadmap editing, and per-concept
// content generation (tutorial, resources, quiz). Each agent is a function
// from a plain JSON-serializable input to a plain JSON-serializable
// output; failure is signaled by a returned error, never a panic.
//
// Concrete LLM-backed implementations live in package llmagent; this
// package only fixes the shapes every implementation must honor so node
// runners can depend on an interface rather than a vendor SDK.
package agent

import (
	"context"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// IntentInput is the Intent Analysis agent's input: the raw user request.
type IntentInput struct {
	UserRequest string `json:"user_request"`
}

// IntentAgent turns a free-text user request into a structured intent
// analysis, including a roadmap_id candidate the runner will de-duplicate.
type IntentAgent interface {
	Analyze(ctx context.Context, in IntentInput) (roadmap.IntentAnalysis, error)
}

// CurriculumInput is the Curriculum Design agent's input.
type CurriculumInput struct {
	RoadmapID string                `json:"roadmap_id"`
	Intent    roadmap.IntentAnalysis `json:"intent_analysis"`
}

// CurriculumAgent designs the three-level stage/module/concept framework
// tree for a roadmap_id given the intent analysis.
type CurriculumAgent interface {
	Design(ctx context.Context, in CurriculumInput) (roadmap.Framework, error)
}

// ValidatorInput is the Structure Validation agent's input.
type ValidatorInput struct {
	Framework roadmap.Framework `json:"framework"`
}

// ValidatorAgent scores a framework's pedagogical quality along the fixed
// dimension set and reports issues. The runner merges this output with its
// own local structural checks (prerequisite resolution, cycle detection)
// before computing the final score via roadmap.ScoreValidation.
type ValidatorAgent interface {
	Validate(ctx context.Context, in ValidatorInput) (roadmap.ValidationOutput, error)
}

// EditPlanInput is the Edit Plan Analysis agent's input, shared by both the
// validation-triggered and human-feedback-triggered branches.
type EditPlanInput struct {
	Feedback  string            `json:"feedback"`
	Framework roadmap.Framework `json:"framework"`
}

// EditPlanAgent decomposes free-text feedback into a structured EditPlan.
type EditPlanAgent interface {
	Plan(ctx context.Context, in EditPlanInput) (roadmap.EditPlan, error)
}

// EditorInput is the Roadmap Edit agent's input: the plan to apply, the
// framework to apply it to, and free-text context describing the edit
// round and per-priority intent counts.
type EditorInput struct {
	Plan      roadmap.EditPlan  `json:"edit_plan"`
	Framework roadmap.Framework `json:"framework"`
	RoundInfo string            `json:"round_info"`
}

// EditorAgent applies an EditPlan to a framework and returns the modified
// tree. The runner is responsible for diffing origin vs. modified to
// compute the changed concept set; the agent itself returns only the tree.
type EditorAgent interface {
	Apply(ctx context.Context, in EditorInput) (roadmap.Framework, error)
}

// TutorialInput is the per-concept tutorial generation agent's input.
type TutorialInput struct {
	RoadmapID string          `json:"roadmap_id"`
	Concept   roadmap.Concept `json:"concept"`
}

// TutorialOutput is the tutorial agent's structured response. Body is the
// raw Markdown content; the caller (fanout) is responsible for writing it
// to the object store and recording only the returned URL.
type TutorialOutput struct {
	Title         string  `json:"title"`
	Summary       string  `json:"summary"`
	Body          string  `json:"body"`
	EstimatedTime float64 `json:"estimated_time_minutes"`
}

// TutorialAgent generates the tutorial content for one concept.
type TutorialAgent interface {
	Generate(ctx context.Context, in TutorialInput) (TutorialOutput, error)
}

// ResourceInput is the per-concept resource-recommendation agent's input.
type ResourceInput struct {
	RoadmapID string          `json:"roadmap_id"`
	Concept   roadmap.Concept `json:"concept"`
}

// ResourceAgent recommends external learning resources for one concept,
// optionally backed by a web-search Tool.
type ResourceAgent interface {
	Recommend(ctx context.Context, in ResourceInput) ([]roadmap.Resource, error)
}

// QuizInput is the per-concept quiz generation agent's input.
type QuizInput struct {
	RoadmapID string          `json:"roadmap_id"`
	Concept   roadmap.Concept `json:"concept"`
}

// QuizAgent generates multiple-choice quiz questions for one concept.
type QuizAgent interface {
	Generate(ctx context.Context, in QuizInput) ([]roadmap.QuizQuestion, error)
}

// ObjectStore is the simple put/get interface the tutorial body is stored
// through; the engine references only the returned URL and never loads
// the body into workflow state.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) (url string, err error)
	Get(ctx context.Context, key string) (body []byte, err error)
}

// CoverImageInput is the roadmap cover-image generation agent's input.
type CoverImageInput struct {
	RoadmapID string `json:"roadmap_id"`
	Title     string `json:"title"`
}

// CoverImageAgent generates a roadmap cover image asynchronously; fan-out
// triggers it without blocking on the result.
type CoverImageAgent interface {
	Generate(ctx context.Context, in CoverImageInput) (url string, err error)
}
