package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // map[scheduleID]interval
	createErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[string]time.Duration),
	}
}

// CreateRescanSchedule records that a schedule was created.
func (m *MockScheduler) CreateRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[RescanScheduleID(contractAddress)] = interval
	return nil
}

// UpsertRescanSchedule creates or updates a schedule.
func (m *MockScheduler) UpsertRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[RescanScheduleID(contractAddress)] = interval // Creates or updates
	return nil
}

// DeleteRescanSchedule records that a schedule was deleted.
func (m *MockScheduler) DeleteRescanSchedule(ctx context.Context, contractAddress string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := RescanScheduleID(contractAddress)
	if _, exists := m.schedules[id]; !exists {
		return fmt.Errorf("schedule %q not found", id)
	}

	delete(m.schedules, id)
	return nil
}

// SetCreateError makes CreateRescanSchedule return an error.
func (m *MockScheduler) SetCreateError(err error) {
	m.createErr = err
}

// SetDeleteError makes DeleteRescanSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// ScheduleExists checks if a schedule exists for a contract.
func (m *MockScheduler) ScheduleExists(contractAddress string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.schedules[RescanScheduleID(contractAddress)]
	return exists
}

// GetScheduleInterval returns the interval for a contract's schedule.
func (m *MockScheduler) GetScheduleInterval(contractAddress string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	interval, exists := m.schedules[RescanScheduleID(contractAddress)]
	return interval, exists
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

// Reset clears all schedules and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[string]time.Duration)
	m.createErr = nil
	m.deleteErr = nil
}
