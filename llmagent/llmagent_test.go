package llmagent_test

import (
	"context"
	"testing"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/graph/model"
	"github.com/roadmapforge/orchestrator/llmagent"
	"github.com/roadmapforge/orchestrator/roadmap"
)

func TestIntentAgent_Analyze(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{
		"roadmap_id_candidate": "learn-kubernetes",
		"key_technologies": ["kubernetes", "docker"],
		"difficulty_profile": "intermediate"
	}`}}}
	a := llmagent.IntentAgent{Chat: chat}

	out, err := a.Analyze(context.Background(), agent.IntentInput{UserRequest: "teach me kubernetes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RoadmapIDCandidate != "learn-kubernetes" {
		t.Errorf("roadmap id candidate = %q", out.RoadmapIDCandidate)
	}
	if chat.CallCount() != 1 {
		t.Errorf("expected 1 chat call, got %d", chat.CallCount())
	}
}

func TestIntentAgent_Analyze_SchemaViolationIsError(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{"key_technologies": ["go"]}`}}}
	a := llmagent.IntentAgent{Chat: chat}

	if _, err := a.Analyze(context.Background(), agent.IntentInput{UserRequest: "x"}); err == nil {
		t.Error("expected schema validation error for missing required field")
	}
}

func TestIntentAgent_Analyze_FencedJSONIsAccepted(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "```json\n" + `{
		"roadmap_id_candidate": "learn-go",
		"key_technologies": ["go"],
		"difficulty_profile": "beginner"
	}` + "\n```"}}}
	a := llmagent.IntentAgent{Chat: chat}

	out, err := a.Analyze(context.Background(), agent.IntentInput{UserRequest: "teach me go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RoadmapIDCandidate != "learn-go" {
		t.Errorf("roadmap id candidate = %q", out.RoadmapIDCandidate)
	}
}

func TestIntentAgent_Analyze_ChatErrorPropagates(t *testing.T) {
	chat := &model.MockChatModel{Err: context.DeadlineExceeded}
	a := llmagent.IntentAgent{Chat: chat}

	if _, err := a.Analyze(context.Background(), agent.IntentInput{UserRequest: "x"}); err == nil {
		t.Error("expected chat error to propagate")
	}
}

func TestCurriculumAgent_Design(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{
		"roadmap_id": "learn-go",
		"title": "Learn Go",
		"stages": [{
			"stage_id": "s1", "name": "Basics", "modules": [{
				"module_id": "m1", "name": "Syntax", "concepts": [
					{"concept_id": "c1", "name": "Variables"}
				]
			}]
		}]
	}`}}}
	a := llmagent.CurriculumAgent{Chat: chat}

	out, err := a.Design(context.Background(), agent.CurriculumInput{RoadmapID: "learn-go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Stages) != 1 || len(out.Stages[0].Modules) != 1 {
		t.Fatalf("unexpected framework shape: %+v", out)
	}
}

func TestValidatorAgent_Validate(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{
		"is_valid": true,
		"overall_score": 88,
		"issues": [],
		"dimension_scores": [{"dimension": "coherence", "score": 90, "weight": 0.25}]
	}`}}}
	a := llmagent.ValidatorAgent{Chat: chat}

	out, err := a.Validate(context.Background(), agent.ValidatorInput{Framework: roadmap.Framework{RoadmapID: "r1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsValid || out.OverallScore != 88 {
		t.Errorf("unexpected validation output: %+v", out)
	}
}

func TestResourceAgent_Recommend_NoSearchTool(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `[
		{"title": "Go Tour", "url": "https://go.dev/tour", "type": "docs"}
	]`}}}
	a := llmagent.ResourceAgent{Chat: chat}

	out, err := a.Recommend(context.Background(), agent.ResourceInput{RoadmapID: "r1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Go Tour" {
		t.Errorf("unexpected resources: %+v", out)
	}
}

type fakeSearchTool struct {
	called bool
	input  map[string]interface{}
}

func (f *fakeSearchTool) Name() string { return "search_web" }

func (f *fakeSearchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	f.called = true
	f.input = input
	return map[string]interface{}{"results": []string{"https://example.com/go-concurrency"}}, nil
}

func TestResourceAgent_Recommend_InvokesSearchToolOnToolCall(t *testing.T) {
	search := &fakeSearchTool{}
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: "search_web", Input: map[string]interface{}{"query": "go concurrency"}}}},
		{Text: `[{"title": "Go Concurrency Patterns", "url": "https://example.com/go-concurrency", "type": "article"}]`},
	}}
	a := llmagent.ResourceAgent{Chat: chat, Search: search}

	out, err := a.Recommend(context.Background(), agent.ResourceInput{RoadmapID: "r1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !search.called {
		t.Error("expected search tool to be invoked")
	}
	if len(out) != 1 || out[0].Type != "article" {
		t.Errorf("unexpected resources: %+v", out)
	}
	if chat.CallCount() != 2 {
		t.Errorf("expected 2 chat calls (initial + post-search), got %d", chat.CallCount())
	}
}

func TestQuizAgent_Generate(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `[
		{"prompt": "What is a goroutine?", "choices": ["A thread", "A lightweight concurrent function", "A package"], "correct_choice": 1}
	]`}}}
	a := llmagent.QuizAgent{Chat: chat}

	out, err := a.Generate(context.Background(), agent.QuizInput{RoadmapID: "r1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].CorrectChoice != 1 {
		t.Errorf("unexpected quiz questions: %+v", out)
	}
}

type fakeImageTool struct{ url string }

func (f *fakeImageTool) Name() string { return "generate_image" }

func (f *fakeImageTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"url": f.url}, nil
}

func TestCoverImageAgent_Generate(t *testing.T) {
	a := llmagent.CoverImageAgent{Generator: &fakeImageTool{url: "https://cdn.example.com/cover.png"}}

	url, err := a.Generate(context.Background(), agent.CoverImageInput{RoadmapID: "r1", Title: "Learn Go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn.example.com/cover.png" {
		t.Errorf("url = %q", url)
	}
}
