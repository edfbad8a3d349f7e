package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

func TestParseRunID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", string(NewRunID()), false},
		{"padded", "  " + string(NewRunID()) + " ", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"not a uuid", "run-123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRunID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestStatShapeErrorMatchesSentinel(t *testing.T) {
	err := NewStatShapeError(4, 100, 3, 100)
	if !errors.Is(err, ErrStatShapeMismatch) {
		t.Fatalf("expected errors.Is(err, ErrStatShapeMismatch), got %v", err)
	}
	if !IsShapeError(err) {
		t.Error("IsShapeError should report true")
	}

	var shapeErr *StatShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatal("expected *StatShapeError")
	}
	if shapeErr.GotTiles != 3 || shapeErr.WantTiles != 4 {
		t.Errorf("unexpected shape fields: %+v", shapeErr)
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsConfigurationError(NewUnknownFamilyError("gumbel")) {
		t.Error("unknown family should be a configuration error")
	}
	if !IsInputError(NewInvalidTileError(3, "K must be positive")) {
		t.Error("invalid tile should be an input error")
	}
	if !IsNotFoundError(NewNotFoundError("run", "abc")) {
		t.Error("expected not found error")
	}
	if IsShapeError(NewUnknownModelError("ztest2")) {
		t.Error("unknown model is not a shape error")
	}
}
