package util

import "testing"

func TestSplitList(t *testing.T) {
	got := SplitList(" a:9092, ,b:9092 ,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected %q", got)
	}
	if SplitList("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
