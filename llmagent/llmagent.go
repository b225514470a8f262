// Package llmagent implements the agent.* contracts on top of the engine's
// ChatModel abstraction (graph/model), so any wired provider — Anthropic,
// OpenAI, or Google — can back a node runner interchangeably. Each
// implementation formats a system/user prompt pair, asks the model for a
// JSON object matching one of package agent's schemas, validates the
// response before unmarshaling, and surfaces any failure as a returned
// error, never a panic.
package llmagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/graph/model"
	"github.com/roadmapforge/orchestrator/graph/tool"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// askJSON sends systemPrompt/userPrompt to chat, validates the model's text
// response against schemaJSON, and unmarshals it into out.
func askJSON(ctx context.Context, chat model.ChatModel, systemPrompt, userPrompt string, schemaJSON []byte, out interface{}) error {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: userPrompt},
	}
	result, err := chat.Chat(ctx, messages, nil)
	if err != nil {
		return fmt.Errorf("llmagent: chat call failed: %w", err)
	}

	text := extractJSON(result.Text)
	if err := agent.ValidateJSON(schemaJSON, []byte(text)); err != nil {
		return fmt.Errorf("llmagent: response failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("llmagent: unmarshal response: %w", err)
	}
	return nil
}

// extractJSON strips a ```json fenced code block if the model wrapped its
// answer in one, otherwise returns the text unchanged. Models frequently
// ignore an instruction to respond with bare JSON.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// IntentAgent implements agent.IntentAgent.
type IntentAgent struct {
	Chat model.ChatModel
}

func (a IntentAgent) Analyze(ctx context.Context, in agent.IntentInput) (roadmap.IntentAnalysis, error) {
	var out roadmap.IntentAnalysis
	system := "You analyze a learner's request and extract a structured intent analysis. " +
		"Respond with a single JSON object: roadmap_id_candidate (a short kebab-case slug), " +
		"key_technologies, difficulty_profile, time_constraints, skill_gaps, language_preference, recommended_focus."
	err := askJSON(ctx, a.Chat, system, in.UserRequest, agent.IntentAnalysisSchema, &out)
	return out, err
}

// CurriculumAgent implements agent.CurriculumAgent.
type CurriculumAgent struct {
	Chat model.ChatModel
}

func (a CurriculumAgent) Design(ctx context.Context, in agent.CurriculumInput) (roadmap.Framework, error) {
	var out roadmap.Framework
	system := "You design a three-level learning curriculum: stages containing modules containing concepts. " +
		"Respond with a single JSON object matching {roadmap_id, title, stages: [{stage_id, name, description, " +
		"modules: [{module_id, name, description, concepts: [{concept_id, name, description, estimated_hours, " +
		"prerequisites, difficulty, keywords}]}]}]}."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal curriculum input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.FrameworkSchema, &out)
	return out, err
}

// ValidatorAgent implements agent.ValidatorAgent.
type ValidatorAgent struct {
	Chat model.ChatModel
}

func (a ValidatorAgent) Validate(ctx context.Context, in agent.ValidatorInput) (roadmap.ValidationOutput, error) {
	var out roadmap.ValidationOutput
	system := "You assess a learning roadmap's coherence, completeness, progression, accuracy, and pacing. " +
		"Respond with a single JSON object matching {is_valid, overall_score, issues: [{severity, category, " +
		"location, description, affected_concepts}], dimension_scores: [{dimension, score, weight}], " +
		"improvement_suggestions, validation_summary}. Use severity 'critical' only for defects that make the " +
		"roadmap unusable; use 'warning' for everything else."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal validator input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.ValidationOutputSchema, &out)
	return out, err
}

// EditPlanAgent implements agent.EditPlanAgent.
type EditPlanAgent struct {
	Chat model.ChatModel
}

func (a EditPlanAgent) Plan(ctx context.Context, in agent.EditPlanInput) (roadmap.EditPlan, error) {
	var out roadmap.EditPlan
	system := "You decompose feedback about a learning roadmap into a structured edit plan. " +
		"Respond with a single JSON object matching {feedback_summary, scope_analysis, " +
		"preservation_requirements, needs_clarification, intents: [{intent_type, target_path, description, priority}]}."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal edit plan input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.EditPlanSchema, &out)
	return out, err
}

// EditorAgent implements agent.EditorAgent.
type EditorAgent struct {
	Chat model.ChatModel
}

func (a EditorAgent) Apply(ctx context.Context, in agent.EditorInput) (roadmap.Framework, error) {
	var out roadmap.Framework
	system := "You apply a structured edit plan to a learning roadmap's framework tree and return the " +
		"complete modified tree, preserving every concept not targeted by an intent. Respond with a single " +
		"JSON object matching the framework schema: {roadmap_id, title, stages: [...]}."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal editor input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.FrameworkSchema, &out)
	return out, err
}

// TutorialAgent implements agent.TutorialAgent.
type TutorialAgent struct {
	Chat model.ChatModel
}

func (a TutorialAgent) Generate(ctx context.Context, in agent.TutorialInput) (agent.TutorialOutput, error) {
	var out agent.TutorialOutput
	system := "You write a self-contained tutorial teaching one concept from a learning roadmap. " +
		"Respond with a single JSON object matching {title, summary, body (Markdown), estimated_time_minutes}."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal tutorial input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.TutorialOutputSchema, &out)
	return out, err
}

// QuizAgent implements agent.QuizAgent.
type QuizAgent struct {
	Chat model.ChatModel
}

func (a QuizAgent) Generate(ctx context.Context, in agent.QuizInput) ([]roadmap.QuizQuestion, error) {
	var out []roadmap.QuizQuestion
	system := "You write multiple-choice quiz questions testing one concept from a learning roadmap. " +
		"Respond with a single JSON array matching [{prompt, choices, correct_choice, explanation}]."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal quiz input: %w", err)
	}
	err = askJSON(ctx, a.Chat, system, string(user), agent.QuizQuestionListSchema, &out)
	return out, err
}

// searchToolSpec describes the web-search tool to the model; the schema
// here mirrors whatever the wired tool.Tool itself expects as Call input.
func searchToolSpec(t tool.Tool) model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Search the web for up-to-date learning resources on a topic.",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []string{"query"},
		},
	}
}

// ResourceAgent implements agent.ResourceAgent, optionally grounding its
// recommendations in live web-search results. Each tool call in the
// model's first response is run once and its result folded back in as a
// follow-up user message, with a new chat request after each; tool calls
// in later responses are not run.
type ResourceAgent struct {
	Chat   model.ChatModel
	Search tool.Tool // may be nil; falls back to the model's own knowledge
}

func (a ResourceAgent) Recommend(ctx context.Context, in agent.ResourceInput) ([]roadmap.Resource, error) {
	var out []roadmap.Resource
	system := "You recommend external learning resources (articles, videos, docs, courses) for one " +
		"concept from a learning roadmap. Respond with a single JSON array matching " +
		"[{title, url, type}] where type is one of article, video, docs, course."
	user, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("llmagent: marshal resource input: %w", err)
	}

	if a.Search == nil {
		err = askJSON(ctx, a.Chat, system, string(user), agent.ResourceListSchema, &out)
		return out, err
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: string(user)},
	}
	specs := []model.ToolSpec{searchToolSpec(a.Search)}
	result, err := a.Chat.Chat(ctx, messages, specs)
	if err != nil {
		return out, fmt.Errorf("llmagent: chat call failed: %w", err)
	}

	for _, call := range result.ToolCalls {
		toolOut, callErr := a.Search.Call(ctx, call.Input)
		if callErr != nil {
			return out, fmt.Errorf("llmagent: search tool call failed: %w", callErr)
		}
		toolJSON, marshalErr := json.Marshal(toolOut)
		if marshalErr != nil {
			return out, fmt.Errorf("llmagent: marshal search result: %w", marshalErr)
		}
		messages = append(messages,
			model.Message{Role: model.RoleAssistant, Content: result.Text},
			model.Message{Role: model.RoleUser, Content: "Search results: " + string(toolJSON) +
				"\nNow respond with the final JSON array of recommendations."},
		)
		result, err = a.Chat.Chat(ctx, messages, nil)
		if err != nil {
			return out, fmt.Errorf("llmagent: chat call failed after search: %w", err)
		}
	}

	text := extractJSON(result.Text)
	if err := agent.ValidateJSON(agent.ResourceListSchema, []byte(text)); err != nil {
		return out, fmt.Errorf("llmagent: response failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("llmagent: unmarshal response: %w", err)
	}
	return out, nil
}

// CoverImageAgent implements agent.CoverImageAgent on top of an
// image-generation Tool rather than a ChatModel; fan-out invokes it
// without blocking the rest of content generation on its result.
type CoverImageAgent struct {
	Generator tool.Tool
}

func (a CoverImageAgent) Generate(ctx context.Context, in agent.CoverImageInput) (string, error) {
	out, err := a.Generator.Call(ctx, map[string]interface{}{
		"roadmap_id": in.RoadmapID,
		"title":      in.Title,
	})
	if err != nil {
		return "", fmt.Errorf("llmagent: cover image generation failed: %w", err)
	}
	url, ok := out["url"].(string)
	if !ok || url == "" {
		return "", fmt.Errorf("llmagent: cover image tool returned no url")
	}
	return url, nil
}
