package tracker

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process tracker that records every delivery. It backs
// the self-test runner, the play console and tests.
type Memory struct {
	mu     sync.Mutex
	issues map[int]*MemoryIssue
	next   int
}

// MemoryIssue is an issue together with everything delivered to it
type MemoryIssue struct {
	Issue
	Comments []string
	Closed   bool
}

func NewMemory() *Memory {
	return &Memory{issues: make(map[int]*MemoryIssue), next: 1}
}

// Open files a new issue and returns its number
func (m *Memory) Open(title, author string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	m.next++
	m.issues[n] = &MemoryIssue{Issue: Issue{Number: n, Title: title, Author: author, State: "open"}}
	return n
}

// Get returns a copy of the recorded issue
func (m *Memory) Get(number int) (MemoryIssue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[number]
	if !ok {
		return MemoryIssue{}, false
	}
	cp := *issue
	cp.Comments = append([]string(nil), issue.Comments...)
	cp.Labels = append([]string(nil), issue.Labels...)
	return cp, true
}

func (m *Memory) Issue(_ context.Context, number int) (*Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue %d not found", number)
	}
	cp := issue.Issue
	cp.Labels = append([]string(nil), issue.Labels...)
	return &cp, nil
}

func (m *Memory) Comment(_ context.Context, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	issue.Comments = append(issue.Comments, body)
	return nil
}

func (m *Memory) Close(ctx context.Context, number int, labels []string) error {
	if err := m.AddLabels(ctx, number, labels); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	issue := m.issues[number]
	issue.Closed = true
	issue.State = "closed"
	return nil
}

func (m *Memory) AddLabels(_ context.Context, number int, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	issue.Labels = append(issue.Labels, labels...)
	return nil
}
