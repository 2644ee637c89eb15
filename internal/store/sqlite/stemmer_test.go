package sqlite

import "testing"

func TestStemWord(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cat", "cat"},
		{"reports", "report"},
		{"reviewing", "review"},
		{"reviewed", "review"},
		{"monthly", "month"},
		{"dashes", "dash"},
		{"class", "class"},
	}
	for _, c := range cases {
		if got := stemWord(c.in); got != c.want {
			t.Errorf("stemWord(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStemTopic(t *testing.T) {
	got := stemTopic("GSC reports due")
	want := []string{"gsc", "report", "due"}
	if len(got) != len(want) {
		t.Fatalf("stemTopic length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stemTopic()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
