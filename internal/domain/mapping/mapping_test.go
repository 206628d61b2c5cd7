package mapping

import "testing"

func TestNewFromCreateRequestDefaultsToActive(t *testing.T) {
	m := NewFromCreateRequest(CreateMappingRequest{
		PatientID: "p1",
		DoctorID:  "d1",
		Symptoms:  []string{" cough ", "", "fever"},
	}, nil)

	if m.Status != StatusActive {
		t.Fatalf("status = %q, want active", m.Status)
	}
	if len(m.Symptoms) != 2 || m.Symptoms[0] != "cough" {
		t.Fatalf("symptoms = %v", m.Symptoms)
	}
}

func TestApplyPartial(t *testing.T) {
	m := Mapping{Status: StatusActive, Notes: "keep", Symptoms: []string{"a"}}
	done := StatusCompleted

	m.Apply(UpdateMappingRequest{Status: &done})

	if m.Status != StatusCompleted || m.Notes != "keep" || len(m.Symptoms) != 1 {
		t.Fatalf("unexpected mapping: %+v", m)
	}
}

func TestStatusIsValid(t *testing.T) {
	if Status("pending").IsValid() {
		t.Fatal("pending is not a mapping status")
	}
	if !StatusInactive.IsValid() {
		t.Fatal("inactive must be valid")
	}
}
