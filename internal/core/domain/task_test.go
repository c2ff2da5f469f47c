package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" {
		t.Error("expected non-empty ID")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	// Canonical UUID string form
	if len(id1) != 36 {
		t.Errorf("expected ID length 36, got %d", len(id1))
	}
}

func TestNewTask(t *testing.T) {
	payload := map[string]string{"key": "value"}

	task := NewTask(TaskTypeCorrection, payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeCorrection {
		t.Errorf("expected type %s, got %s", TaskTypeCorrection, task.Type)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.ScheduledFor.IsZero() {
		t.Error("expected ScheduledFor to be set")
	}
}

func TestNewCorrectionTask(t *testing.T) {
	slot := Slot{Concept: "saving", Difficulty: "advanced", AgeBand: "age_13_17"}

	task := NewCorrectionTask(slot, "bias-corrected", "fb-1", "only boys save")

	if task.Type != TaskTypeCorrection {
		t.Errorf("expected type %s, got %s", TaskTypeCorrection, task.Type)
	}
	if task.Slot() != slot {
		t.Errorf("expected slot %v, got %v", slot, task.Slot())
	}
	if task.PayloadValue("reason") != "bias-corrected" {
		t.Errorf("expected reason bias-corrected, got %s", task.PayloadValue("reason"))
	}
	if task.PayloadValue("comments") != "only boys save" {
		t.Errorf("expected comments to be carried, got %s", task.PayloadValue("comments"))
	}
}

func TestTask_SlotWithoutPayload(t *testing.T) {
	task := &Task{}
	if task.Slot() != (Slot{}) {
		t.Errorf("expected empty slot, got %v", task.Slot())
	}
	if task.PayloadValue("reason") != "" {
		t.Error("expected empty payload value")
	}
}

func TestTask_CanRetry(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		maxAttempts int
		expected    bool
	}{
		{"no attempts yet", 0, 3, true},
		{"one attempt", 1, 3, true},
		{"two attempts", 2, 3, true},
		{"max attempts reached", 3, 3, false},
		{"over max attempts", 4, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Attempts: tt.attempts, MaxAttempts: tt.maxAttempts}
			if got := task.CanRetry(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_MarkProcessing(t *testing.T) {
	task := NewTask(TaskTypeCorrection, nil)

	task.MarkProcessing()

	if task.Status != TaskStatusProcessing {
		t.Errorf("expected status %s, got %s", TaskStatusProcessing, task.Status)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}
	if task.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", task.Attempts)
	}
}

func TestTask_MarkCompleted(t *testing.T) {
	task := NewTask(TaskTypeCorrection, nil)
	task.Error = "some error"

	task.MarkCompleted()

	if task.Status != TaskStatusCompleted {
		t.Errorf("expected status %s, got %s", TaskStatusCompleted, task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if task.Error != "" {
		t.Error("expected Error to be cleared")
	}
}

func TestTask_MarkFailed(t *testing.T) {
	task := NewTask(TaskTypeCorrection, nil)
	errorMsg := "something went wrong"

	task.MarkFailed(errorMsg)

	if task.Status != TaskStatusFailed {
		t.Errorf("expected status %s, got %s", TaskStatusFailed, task.Status)
	}
	if task.Error != errorMsg {
		t.Errorf("expected error %s, got %s", errorMsg, task.Error)
	}
}

func TestTask_Retry(t *testing.T) {
	task := NewTask(TaskTypeCorrection, nil)
	task.Attempts = 1
	errorMsg := "retry error"
	beforeRetry := time.Now()

	task.Retry(errorMsg)

	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Error != errorMsg {
		t.Errorf("expected error %s, got %s", errorMsg, task.Error)
	}
	// With 1 attempt, backoff should be 2^1 = 2 seconds
	expectedBackoff := 2 * time.Second
	expectedScheduledFor := beforeRetry.Add(expectedBackoff)
	if task.ScheduledFor.Before(expectedScheduledFor.Add(-time.Second)) {
		t.Errorf("expected ScheduledFor around %v, got %v", expectedScheduledFor, task.ScheduledFor)
	}
}

func TestTask_Retry_ExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempts        int
		expectedBackoff time.Duration
	}{
		{0, 1 * time.Second},  // 2^0 = 1
		{1, 2 * time.Second},  // 2^1 = 2
		{2, 4 * time.Second},  // 2^2 = 4
		{3, 8 * time.Second},  // 2^3 = 8
		{10, 5 * time.Minute}, // Capped at 5 minutes
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			task := NewTask(TaskTypeCorrection, nil)
			task.Attempts = tt.attempts
			before := time.Now()

			task.Retry("error")

			expectedMin := before.Add(tt.expectedBackoff)
			expectedMax := before.Add(tt.expectedBackoff + time.Second)

			if task.ScheduledFor.Before(expectedMin) || task.ScheduledFor.After(expectedMax) {
				t.Errorf("attempts=%d: expected ScheduledFor between %v and %v, got %v",
					tt.attempts, expectedMin, expectedMax, task.ScheduledFor)
			}
		})
	}
}
