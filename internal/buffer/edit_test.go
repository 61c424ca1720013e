package buffer

import "testing"

func TestMinimalEdit(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		want     Edit
	}{
		{"append", "<div>a</div>", "<div>a</div>b", Edit{Start: 12, End: 12, Text: "b"}},
		{"insert middle", "abcd", "abXcd", Edit{Start: 2, End: 2, Text: "X"}},
		{"delete tail", "abcd", "ab", Edit{Start: 2, End: 4}},
		{"replace", "let x = 1;", "let y = 1;", Edit{Start: 4, End: 5, Text: "y"}},
		{"from empty", "", "hello", Edit{Start: 0, End: 0, Text: "hello"}},
		{"repeated suffix", "aa", "aaa", Edit{Start: 2, End: 2, Text: "a"}},
		{"multibyte", "héllo", "hállo", Edit{Start: 1, End: 3, Text: "á"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MinimalEdit(tc.from, tc.to)
			if !ok {
				t.Fatal("expected an edit")
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
			if res := got.apply(tc.from); res != tc.to {
				t.Errorf("applying edit gave %q, want %q", res, tc.to)
			}
		})
	}
}

func TestMinimalEdit_Equal(t *testing.T) {
	if _, ok := MinimalEdit("same", "same"); ok {
		t.Error("equal strings should produce no edit")
	}
}

func TestEdit_Shift(t *testing.T) {
	e := Edit{Start: 2, End: 4, Text: "xyz"}
	if got := e.shift(1); got != 1 {
		t.Errorf("cursor before edit moved to %d", got)
	}
	if got := e.shift(5); got != 6 {
		t.Errorf("cursor after edit should shift by 1, got %d", got)
	}
	if got := e.shift(3); got != 5 {
		t.Errorf("cursor inside edit should land after new text, got %d", got)
	}
	if got := e.shift(4); got != 5 {
		t.Errorf("cursor at edit end should shift, got %d", got)
	}
}
