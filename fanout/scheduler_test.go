package fanout_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/eventbus"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/fanout"
	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
)

func newTestBrain(t *testing.T) *brain.Brain {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := repository.Open(dbPath)
	require.NoError(t, err)
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
	require.NoError(t, b.Tasks().Create(context.Background(), roadmap.Task{
		TaskID: taskID, UserID: "u1", TaskType: roadmap.TaskTypeCreation,
		Status: roadmap.TaskPending, CreatedAt: now, UpdatedAt: now,
	}))
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

type fakeTutorialAgent struct {
	failFor map[string]bool
}

func (f *fakeTutorialAgent) Generate(ctx context.Context, in agent.TutorialInput) (agent.TutorialOutput, error) {
	if f.failFor[in.Concept.ConceptID] {
		return agent.TutorialOutput{}, errors.New("tutorial generation failed")
	}
	return agent.TutorialOutput{Title: "T-" + in.Concept.ConceptID, Body: "body", EstimatedTime: 10}, nil
}

type fakeResourceAgent struct{}

func (f *fakeResourceAgent) Recommend(ctx context.Context, in agent.ResourceInput) ([]roadmap.Resource, error) {
	return []roadmap.Resource{{Title: "doc", URL: "https://example.com", Type: "docs"}}, nil
}

type fakeQuizAgent struct{}

func (f *fakeQuizAgent) Generate(ctx context.Context, in agent.QuizInput) ([]roadmap.QuizQuestion, error) {
	return []roadmap.QuizQuestion{{Prompt: "q", Choices: []string{"a", "b"}, CorrectChoice: 0}}, nil
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = body
	return "https://store.example/" + key, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func TestScheduler_Run_AllConceptsSucceed(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()
	seedTask(t, b, "t1")
	fw := sampleFramework("learn-go")
	require.NoError(t, b.SaveIntentAnalysis(ctx, "t1", "u1", "learn-go", roadmap.IntentAnalysis{}))
	require.NoError(t, b.SaveRoadmapFramework(ctx, "t1", "learn-go", fw))

	s := fanout.Scheduler{
		Brain: b, Tutorial: &fakeTutorialAgent{}, Resource: &fakeResourceAgent{}, Quiz: &fakeQuizAgent{},
		Store: &fakeStore{}, ParallelConceptLimit: 2,
	}

	result, err := s.Run(ctx, "t1", "learn-go", fw)
	require.NoError(t, err)
	assert.Len(t, result.TutorialRefs, 2)
	assert.Len(t, result.ResourceRefs, 2)
	assert.Len(t, result.QuizRefs, 2)
	assert.Empty(t, result.FailedConcepts)

	task, err := b.Tasks().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskCompleted, task.Status)
	assert.Equal(t, 2, task.ExecutionSummary.ConceptsAttempted)
}

func TestScheduler_Run_PartialFailureMarksTaskPartialFailure(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()
	seedTask(t, b, "t1")
	fw := sampleFramework("learn-go")
	// A third concept keeps one failure below the abort threshold (1/3 < 0.5).
	fw.Stages[0].Modules[0].Concepts = append(fw.Stages[0].Modules[0].Concepts,
		roadmap.Concept{ConceptID: "c3", Name: "Packages"})
	require.NoError(t, b.SaveIntentAnalysis(ctx, "t1", "u1", "learn-go", roadmap.IntentAnalysis{}))
	require.NoError(t, b.SaveRoadmapFramework(ctx, "t1", "learn-go", fw))

	s := fanout.Scheduler{
		Brain: b, Tutorial: &fakeTutorialAgent{failFor: map[string]bool{"c2": true}},
		Resource: &fakeResourceAgent{}, Quiz: &fakeQuizAgent{}, Store: &fakeStore{}, ParallelConceptLimit: 2,
	}

	result, err := s.Run(ctx, "t1", "learn-go", fw)
	require.NoError(t, err)
	assert.Len(t, result.TutorialRefs, 2)
	require.Len(t, result.FailedConcepts, 1)
	assert.Equal(t, "c2", result.FailedConcepts[0].ConceptID)

	task, err := b.Tasks().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskPartialFailure, task.Status)
}

func TestScheduler_Run_MajorityFailureAbortsAndMarksTaskFailed(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()
	seedTask(t, b, "t1")
	fw := sampleFramework("learn-go")
	require.NoError(t, b.SaveIntentAnalysis(ctx, "t1", "u1", "learn-go", roadmap.IntentAnalysis{}))
	require.NoError(t, b.SaveRoadmapFramework(ctx, "t1", "learn-go", fw))

	s := fanout.Scheduler{
		Brain: b, Tutorial: &fakeTutorialAgent{failFor: map[string]bool{"c1": true, "c2": true}},
		Resource: &fakeResourceAgent{}, Quiz: &fakeQuizAgent{}, Store: &fakeStore{},
	}

	_, err := s.Run(ctx, "t1", "learn-go", fw)
	assert.ErrorIs(t, err, fanout.ErrMajorityFailure)

	task, err := b.Tasks().Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, roadmap.TaskFailed, task.Status)
}

func TestScheduler_Run_SkipsAlreadyCompletedConcepts(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()
	seedTask(t, b, "t1")
	fw := sampleFramework("learn-go")
	fw.Stages[0].Modules[0].Concepts[0].ContentStatus = roadmap.ContentCompleted
	fw.Stages[0].Modules[0].Concepts[0].ResourcesStatus = roadmap.ContentCompleted
	fw.Stages[0].Modules[0].Concepts[0].QuizStatus = roadmap.ContentCompleted
	require.NoError(t, b.SaveIntentAnalysis(ctx, "t1", "u1", "learn-go", roadmap.IntentAnalysis{}))
	require.NoError(t, b.SaveRoadmapFramework(ctx, "t1", "learn-go", fw))

	s := fanout.Scheduler{
		Brain: b, Tutorial: &fakeTutorialAgent{}, Resource: &fakeResourceAgent{}, Quiz: &fakeQuizAgent{}, Store: &fakeStore{},
	}

	result, err := s.Run(ctx, "t1", "learn-go", fw)
	require.NoError(t, err)
	assert.Len(t, result.TutorialRefs, 1)
	_, skipped := result.TutorialRefs["c1"]
	assert.False(t, skipped)
	_, ran := result.TutorialRefs["c2"]
	assert.True(t, ran)
}
