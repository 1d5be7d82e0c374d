package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is the in-process Store used by simulation runs and tests. Nothing
// survives a restart.
type Memory struct {
	mu       sync.RWMutex
	counters map[string]int64
	sets     map[string]map[string]struct{}
	records  map[string]map[string]string
	logs     map[string][]Sample
}

func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
		records:  make(map[string]map[string]string),
		logs:     make(map[string][]Sample),
	}
}

func (m *Memory) NextID(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) SetAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SetRemove(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	if _, present := set[member]; !present {
		return false, nil
	}
	delete(set, member)
	return true, nil
}

func (m *Memory) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.sets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) PutRecord(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := make(map[string]string, len(fields))
	for k, v := range fields {
		record[k] = v
	}
	m.records[key] = record
	return nil
}

func (m *Memory) GetRecord(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record := make(map[string]string, len(m.records[key]))
	for k, v := range m.records[key] {
		record[k] = v
	}
	return record, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.counters, key)
		delete(m.sets, key)
		delete(m.records, key)
		delete(m.logs, key)
	}
	return nil
}

func (m *Memory) AppendLog(_ context.Context, key string, score float64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := append(m.logs[key], Sample{Score: score, Value: value})
	sort.SliceStable(log, func(i, j int) bool { return log[i].Score < log[j].Score })
	m.logs[key] = log
	return nil
}

func (m *Memory) LogRange(_ context.Context, key string, start, stop int64) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.logs[key]
	from, to, ok := clampRange(start, stop, int64(len(log)))
	if !ok {
		return nil, nil
	}
	out := make([]Sample, to-from+1)
	copy(out, log[from:to+1])
	return out, nil
}

func (m *Memory) LogSize(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.logs[key])), nil
}

func (m *Memory) TrimLog(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[key]
	from, to, ok := clampRange(start, stop, int64(len(log)))
	if !ok {
		return nil
	}
	m.logs[key] = append(log[:from:from], log[to+1:]...)
	return nil
}

func (m *Memory) Close() error { return nil }

// clampRange resolves redis-style rank indexes (negative counts from the
// end) against a log of the given length.
func clampRange(start, stop, length int64) (from, to int64, ok bool) {
	if length == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
