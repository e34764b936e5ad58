package task

import "testing"

func TestNewTask(t *testing.T) {
	jobID := NewJobID()
	task := NewTask(jobID, "Hello", "thread-1")

	if task.JobID() != jobID {
		t.Errorf("Expected JobID %s, got %s", jobID.String(), task.JobID().String())
	}

	if task.UserMessage() != "Hello" {
		t.Errorf("Expected UserMessage 'Hello', got '%s'", task.UserMessage())
	}

	if task.SessionID() != "thread-1" {
		t.Errorf("Expected SessionID 'thread-1', got '%s'", task.SessionID())
	}

	if task.IsCommand() {
		t.Error("Plain message should not be a command")
	}
}

func TestTaskIsCommand(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"/reset", true},
		{"/classify nba.csv", true},
		{"classify /tmp/nba.csv", false},
		{"", false},
	}

	for _, tt := range tests {
		got := NewTask(NewJobID(), tt.message, "s").IsCommand()
		if got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}
