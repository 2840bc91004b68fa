package diagnose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Classification
	}{
		{
			name: "empty output",
			raw:  "",
			want: Classification{ErrorType: NoError},
		},
		{
			name: "missing semicolon",
			raw:  "main.c:3:5: error: expected ';' before 'return'\n",
			want: Classification{ErrorType: SyntaxError, ErrorCount: 1},
		},
		{
			name: "undeclared identifier",
			raw:  "main.c:4:9: error: 'x' undeclared (first use in this function)\n",
			want: Classification{ErrorType: UndeclaredVariable, ErrorCount: 1},
		},
		{
			name: "uninitialized use",
			raw:  "main.c:5:3: warning: 'y' is used uninitialized [-Wuninitialized]\n",
			want: Classification{ErrorType: UninitializedVariable, WarningCount: 1},
		},
		{
			name: "printf format mismatch",
			raw:  "main.c:6:12: warning: format '%d' expects argument of type 'int' in printf\n",
			want: Classification{ErrorType: TypeError, WarningCount: 1},
		},
		{
			name: "plain warning",
			raw:  "main.c:2:7: warning: unused variable 'z' [-Wunused-variable]\n",
			want: Classification{ErrorType: Warning, WarningCount: 1},
		},
		{
			name: "linker failure",
			raw:  "/usr/bin/ld: main.o: in function `main':\nmain.c:(.text+0x9): undefined reference to `foo'\ncollect2: error: ld returned 1 exit status\n",
			want: Classification{ErrorType: UnknownError, ErrorCount: 1},
		},
		{
			name: "uppercase tokens still count",
			raw:  "MAIN.C:1:1: ERROR: bogus\nMAIN.C:2:1: WARNING: odd\n",
			want: Classification{ErrorType: UnknownError, ErrorCount: 1, WarningCount: 1},
		},
		{
			name: "two errors on one line count twice",
			raw:  "a.c:1: error: foo error: bar\na.c:2: warning: baz\n",
			want: Classification{ErrorType: UnknownError, ErrorCount: 2, WarningCount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestClassify_SyntaxRuleWinsOverUndeclared(t *testing.T) {
	raw := "m.c:3: error: 'n' undeclared here\nm.c:4: error: expected expression before ')' token\n"
	got := Classify(raw)
	assert.Equal(t, SyntaxError, got.ErrorType)
	assert.Equal(t, 2, got.ErrorCount)
}

func TestClassify_NoErrorImpliesZeroErrors(t *testing.T) {
	inputs := []string{"", "all good", "note: something", "warning", "error"}
	for _, in := range inputs {
		c := Classify(in)
		if c.ErrorType == NoError {
			assert.Zero(t, c.ErrorCount, "input %q", in)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	raw := "x.c:1:1: error: expected identifier\n"
	assert.Equal(t, Classify(raw), Classify(raw))
}
