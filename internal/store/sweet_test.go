package store

import "testing"

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"choc":      "choc",
		"100%":      `100\%`,
		"sour_worm": `sour\_worm`,
		`a\b`:       `a\\b`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Fatalf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
