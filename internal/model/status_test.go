package model

import "testing"

func TestTerminalStatusesAreFinal(t *testing.T) {
	for _, from := range []string{StatusCompleted, StatusError, StatusCancelled} {
		if !IsTerminalStatus(from) {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range []string{StatusPending, StatusDownloading, StatusCompleted, StatusError, StatusCancelled} {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{"", StatusPending, true},
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusError, true},
		{StatusPending, StatusCompleted, false},
		{StatusDownloading, StatusCompleted, true},
		{StatusDownloading, StatusError, true},
		{StatusDownloading, StatusCancelled, true},
		{StatusDownloading, StatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTransitionTaskStatusRejectsInvalid(t *testing.T) {
	task := &DownloadTask{ID: "t1", Status: StatusCompleted}
	if err := TransitionTaskStatus(task, StatusDownloading); err == nil {
		t.Fatal("expected error for completed -> downloading")
	}
	if task.Status != StatusCompleted {
		t.Fatalf("status mutated on rejected transition: %s", task.Status)
	}
}
