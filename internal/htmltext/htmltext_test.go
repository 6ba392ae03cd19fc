package htmltext

import "testing"

func TestStrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"tags", "<p>Something <strong>BIG</strong> is coming.</p>", "Something BIG is coming."},
		{"nested", "<div><p>First</p>\n<p>Second</p></div>", "First Second"},
		{"whitespace", "<p>  spaced \n out  </p>", "spaced out"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		if got := Strip(tc.in); got != tc.want {
			t.Errorf("%s: Strip(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	in := "<p>one two three four five</p>"
	if got := Excerpt(in, 3); got != "one two three" {
		t.Errorf("Excerpt = %q", got)
	}
	if got := Excerpt(in, 10); got != "one two three four five" {
		t.Errorf("Excerpt beyond length = %q", got)
	}
	if got := Excerpt("", 3); got != "" {
		t.Errorf("Excerpt empty = %q", got)
	}
}
