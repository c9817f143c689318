package utils

import (
	"strings"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if !strings.HasPrefix(id1, "anneal-") {
		t.Errorf("GenerateRunID should start with 'anneal-': %s", id1)
	}
	if id1 == id2 {
		t.Error("GenerateRunID should return unique IDs")
	}
	if err := ValidateRunID(id1); err != nil {
		t.Errorf("generated run id should be valid: %v", err)
	}
}

func TestGenerateArtifactRef(t *testing.T) {
	ref := GenerateArtifactRef("run-1", "RaspaNVT_1")
	if !strings.HasPrefix(ref, "run-1/RaspaNVT_1-") {
		t.Errorf("unexpected ref %s", ref)
	}
	if GenerateArtifactRef("run-1", "RaspaNVT_1") == ref {
		t.Error("refs should be unique per call")
	}
	if !strings.HasPrefix(GenerateArtifactRef("", "RaspaMin"), "adhoc/RaspaMin-") {
		t.Error("empty run id should fall back to adhoc prefix")
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"run-1", false},
		{"anneal-20260101-000000-abcd1234", false},
		{"a/b", true},
		{"a:stop", true},
		{" padded", true},
		{"..", true},
	}
	for _, tt := range tests {
		err := ValidateRunID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}
