package nodes_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/eventbus"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
)

func newTestBrain(t *testing.T) *brain.Brain {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := repository.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	bus := eventbus.New(rdb, nil)

	logger := exlog.New(repository.NewExecutionLogRepo(store))
	return brain.New(store, bus, logger)
}

func seedTask(t *testing.T, b *brain.Brain, taskID string) {
	t.Helper()
	now := time.Now().UTC()
	if err := b.Tasks().Create(context.Background(), roadmap.Task{
		TaskID:    taskID,
		UserID:    "u1",
		TaskType:  roadmap.TaskTypeCreation,
		Status:    roadmap.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed task failed: %v", err)
	}
}

func sampleFramework(roadmapID string) roadmap.Framework {
	return roadmap.Framework{
		RoadmapID: roadmapID,
		Title:     "Learn Go",
		Stages: []roadmap.Stage{{
			StageID: "s1", Name: "Basics",
			Modules: []roadmap.Module{{
				ModuleID: "m1", Name: "Syntax",
				Concepts: []roadmap.Concept{
					{ConceptID: "c1", Name: "Variables"},
					{ConceptID: "c2", Name: "Functions"},
				},
			}},
		}},
	}
}

type fakeIntentAgent struct {
	out roadmap.IntentAnalysis
	err error
}

func (f *fakeIntentAgent) Analyze(ctx context.Context, in agent.IntentInput) (roadmap.IntentAnalysis, error) {
	return f.out, f.err
}

type fakeCurriculumAgent struct {
	out roadmap.Framework
	err error
}

func (f *fakeCurriculumAgent) Design(ctx context.Context, in agent.CurriculumInput) (roadmap.Framework, error) {
	return f.out, f.err
}

type fakeValidatorAgent struct {
	out roadmap.ValidationOutput
	err error
}

func (f *fakeValidatorAgent) Validate(ctx context.Context, in agent.ValidatorInput) (roadmap.ValidationOutput, error) {
	return f.out, f.err
}

type fakeEditPlanAgent struct {
	out roadmap.EditPlan
	err error
}

func (f *fakeEditPlanAgent) Plan(ctx context.Context, in agent.EditPlanInput) (roadmap.EditPlan, error) {
	return f.out, f.err
}

type fakeEditorAgent struct {
	out roadmap.Framework
	err error
}

func (f *fakeEditorAgent) Apply(ctx context.Context, in agent.EditorInput) (roadmap.Framework, error) {
	return f.out, f.err
}
