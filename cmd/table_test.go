package cmd

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "FILE", "STATUS"}, [][]string{
		{"12", "promo.mxf", "processed"},
		{"3", "short row"},
	}, 0)

	for _, want := range []string{"ID", "promo.mxf", "processed", "short row"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "\n") < 5 {
		t.Fatalf("unexpected table shape:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("empty headers rendered something")
	}
}
