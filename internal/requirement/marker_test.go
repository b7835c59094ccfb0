package requirement_test

import (
	"testing"

	"github.com/bilusteknoloji/pymodule/internal/requirement"
)

func TestEvalMarker(t *testing.T) {
	env := requirement.MarkerEnv{PythonVersion: "3.10", SysPlatform: "linux", OsName: "posix"}

	tests := []struct {
		marker string
		want   bool
	}{
		{"", true},
		{`python_version < "3.10"`, false},
		{`python_version <= "3.10"`, true},
		{`python_version >= "3.8"`, true},
		{`sys_platform == "darwin"`, false},
		{`sys_platform == "linux"`, true},
		{`python_version >= "3.8" and sys_platform == "linux"`, true},
		{`python_version >= "3.8" and sys_platform == "darwin"`, false},
		{`python_version < "3.8" or sys_platform == "linux"`, true},
		{`extra == "security"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			if got := requirement.EvalMarker(tt.marker, env); got != tt.want {
				t.Errorf("EvalMarker(%q) = %v, want %v", tt.marker, got, tt.want)
			}
		})
	}
}

func TestResolverUnsatisfiedMarkerTreatedAsAbsent(t *testing.T) {
	env := requirement.MarkerEnv{PythonVersion: "3.12", SysPlatform: "linux", OsName: "posix"}

	req, err := requirement.Parse(`importlib-metadata>=3.6.0; python_version < "3.10"`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if requirement.EvalMarker(req.Marker, env) {
		t.Errorf("marker should be unsatisfied under python 3.12")
	}
}
