package brain

import "sync"

// liveStepCache is the in-memory task_id -> current step name map: single
// writer per task (node entry/exit), read by status endpoints. Stale
// reads after Clear are tolerable by design.
type liveStepCache struct {
	mu    sync.RWMutex
	steps map[string]string
}

func newLiveStepCache() *liveStepCache {
	return &liveStepCache{steps: make(map[string]string)}
}

func (c *liveStepCache) set(taskID, step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[taskID] = step
}

func (c *liveStepCache) get(taskID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	step, ok := c.steps[taskID]
	return step, ok
}

func (c *liveStepCache) clear(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.steps, taskID)
}
