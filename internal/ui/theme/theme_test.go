package theme

import (
	"os"
	"testing"
)

func TestPainter_Disabled(t *testing.T) {
	p := Painter{}
	if got := p.Render(Correct, "ok"); got != "ok" {
		t.Errorf("disabled painter rendered %q", got)
	}
}

func TestStyled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if Styled(os.Stdout) {
		t.Error("NO_COLOR did not disable styling")
	}
}

func TestStyled_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if Styled(f) {
		t.Error("regular file reported as a terminal")
	}
}
