package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsInput(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{`int x; scanf("%d", &x);`, true},
		{`int main(){return 0;}`, false},
		{"", false},
		{`char b[8]; fgets(b, 8, stdin);`, true},
		{`int c = getchar ();`, true},
		{`int c = GETC(stdin);`, true},
		{`SCANF("%d", &n);`, true},
		{`read(0, buf, 4);`, true},
		{`gets(line);`, true},
		{`int c = fgetc(f);`, true},
		{`printf("use scanf to read");`, false},
		{`int myscanf(int a) { return a; } int main(){ return myscanf(1); }`, false},
		{`fread(buf, 1, 4, f);`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsInput(tt.source), "source %q", tt.source)
	}
}
