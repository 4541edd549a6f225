package monitoring

import (
	"testing"
)

func TestTracker_Values(t *testing.T) {
	tr := NewTracker()
	tr.Set("files_ingested", 3)

	values := tr.Values()

	value, exists := values["files_ingested"]
	if !exists {
		t.Fatalf("Expected 'files_ingested' to be present, but it was not")
	}
	if value != 3 {
		t.Errorf("Expected 'files_ingested' to be 3, but got %v", value)
	}

	if _, exists = values["elapsed_seconds"]; !exists {
		t.Errorf("Expected 'elapsed_seconds' to be present, but it was not")
	}
}

func TestTracker_Add(t *testing.T) {
	tr := NewTracker()

	tr.Add("data_gaps", 2)
	tr.Add("data_gaps", 3)

	value, exists := tr.Get("data_gaps")
	if !exists {
		t.Fatalf("Expected 'data_gaps' to be present, but it was not")
	}
	if value != 5 {
		t.Errorf("Expected 'data_gaps' to be 5, but got %v", value)
	}
}

func TestTracker_ValuesCopies(t *testing.T) {
	tr := NewTracker()
	tr.Set("files_ingested", 1)

	values := tr.Values()
	values["files_ingested"] = 99

	value, _ := tr.Get("files_ingested")
	if value != 1 {
		t.Errorf("Expected mutation of the copy to leave the tracker at 1, but got %v", value)
	}
}
