package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestID_RoundTripInt(t *testing.T) {
	id := IntID(42)
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "42" {
		t.Errorf("Marshal() = %s, want 42", data)
	}

	var back ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != id {
		t.Errorf("round trip = %v, want %v", back, id)
	}
}

func TestID_RoundTripString(t *testing.T) {
	id := StringID("req-7")
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"req-7"` {
		t.Errorf("Marshal() = %s, want %q", data, "req-7")
	}

	var back ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != id {
		t.Errorf("round trip = %v, want %v", back, id)
	}
}

func TestID_NumericStringStaysString(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`"42"`), &id); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if id == IntID(42) {
		t.Error(`"42" decoded equal to integer 42`)
	}
	if id.Key() == IntID(42).Key() {
		t.Errorf("Key() collision between string and int forms: %q", id.Key())
	}
}

func TestID_RejectsOtherTypes(t *testing.T) {
	for _, raw := range []string{"null", "1.5", "true", "[1]", `{"a":1}`, ""} {
		var id ID
		err := id.UnmarshalJSON([]byte(raw))
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("UnmarshalJSON(%q) error = %v, want ErrInvalidID", raw, err)
		}
	}
}

func TestID_Zero(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Error("zero ID should report IsZero")
	}
	if IntID(0).IsZero() {
		t.Error("IntID(0) is a real identifier, not absent")
	}
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "null" {
		t.Errorf("zero ID marshals to %s, want null", data)
	}
}

func TestID_String(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{IntID(7), "7"},
		{StringID("abc"), `"abc"`},
		{ID{}, "<none>"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
