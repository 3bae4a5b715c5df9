package steps

import "testing"

func TestRender(t *testing.T) {
	out, err := render("cmd", "pytest {{ .SUITE }} -v", map[string]string{"SUITE": "tests/core"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "pytest tests/core -v" {
		t.Errorf("unexpected render result %q", out)
	}
}

func TestRender_SprigFunctions(t *testing.T) {
	out, err := render("cmd", `{{ .NAME | upper }}`, map[string]string{"NAME": "suite"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "SUITE" {
		t.Errorf("expected sprig upper, got %q", out)
	}
}

func TestRender_MissingVariableIsEmpty(t *testing.T) {
	out, err := render("cmd", "echo {{ .UNSET }}.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "echo ." {
		t.Errorf("expected empty substitution, got %q", out)
	}
}

func TestRender_ParseError(t *testing.T) {
	if _, err := render("cmd", "{{ .Broken", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
