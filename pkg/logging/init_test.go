package logging

import (
	"testing"
)

func TestInitialize(t *testing.T) {
	for _, loggingType := range []string{JSON, Text, Tint} {
		if err := Initialize(loggingType, "info"); err != nil {
			t.Errorf("unexpected error for %s: %v", loggingType, err)
		}
	}
}

func TestInitialize_UnknownType(t *testing.T) {
	if err := Initialize("xml", "info"); err == nil {
		t.Fatal("expected error for unknown logging type")
	}
}

func TestInitialize_BadLevel(t *testing.T) {
	if err := Initialize(Text, "loud"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
