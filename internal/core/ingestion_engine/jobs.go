package ingestion_engine

import (
	"sync"
	"time"
)

// jobTable holds job statuses. Queued and running jobs are bounded by the
// queue and worker count; finished jobs are kept for retention and at most
// maxFinished of them survive, oldest evicted first.
type jobTable struct {
	mu          sync.Mutex
	byID        map[string]JobStatus
	finished    []finishedJob // completion order
	retention   time.Duration
	maxFinished int
	now         func() time.Time
}

type finishedJob struct {
	id string
	at time.Time
}

func newJobTable(retention time.Duration, maxFinished int) *jobTable {
	return &jobTable{
		byID:        make(map[string]JobStatus),
		retention:   retention,
		maxFinished: maxFinished,
		now:         time.Now,
	}
}

func (t *jobTable) set(st JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[st.ID] = st
	if st.State == JobSucceeded || st.State == JobFailed {
		t.finished = append(t.finished, finishedJob{id: st.ID, at: t.now()})
	}
	t.evictLocked()
}

func (t *jobTable) get(id string) (JobStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked()
	st, ok := t.byID[id]
	return st, ok
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *jobTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

func (t *jobTable) evictLocked() {
	cutoff := t.now().Add(-t.retention)
	n := 0
	for n < len(t.finished) {
		f := t.finished[n]
		if len(t.finished)-n <= t.maxFinished && f.at.After(cutoff) {
			break
		}
		delete(t.byID, f.id)
		n++
	}
	if n > 0 {
		t.finished = append(t.finished[:0], t.finished[n:]...)
	}
}
