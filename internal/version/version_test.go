package version

import (
	"strings"
	"testing"
)

// setVars overrides the build variables for one test.
func setVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = version, commit, buildTime
}

func TestString(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		setVars(t, "dev", "unknown", "unknown")

		result := String()

		if !strings.Contains(result, "dev") {
			t.Errorf("String() = %q, should contain 'dev'", result)
		}
		if !strings.Contains(result, "built") {
			t.Errorf("String() = %q, should contain 'built'", result)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		setVars(t, "1.2.3", "abc1234", "2024-01-15T10:00:00Z")

		expected := "1.2.3 (abc1234) built 2024-01-15T10:00:00Z"
		if result := String(); result != expected {
			t.Errorf("String() = %q, want %q", result, expected)
		}
	})
}

func TestAttrs(t *testing.T) {
	setVars(t, "1.2.3", "abc1234", "2024-01-15T10:00:00Z")

	attrs := Attrs()
	if len(attrs) != 6 {
		t.Fatalf("len(Attrs()) = %d, want 6", len(attrs))
	}
	want := map[string]string{
		"version":    "1.2.3",
		"commit":     "abc1234",
		"build_time": "2024-01-15T10:00:00Z",
	}
	for i := 0; i < len(attrs); i += 2 {
		key := attrs[i].(string)
		if got := attrs[i+1].(string); got != want[key] {
			t.Errorf("Attrs()[%s] = %q, want %q", key, got, want[key])
		}
	}
}
