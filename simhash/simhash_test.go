package simhash

import (
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	tokens := []string{"div.card", "span.author", "p.text"}
	if Fingerprint(tokens) != Fingerprint(tokens) {
		t.Error("identical token lists produced different fingerprints")
	}
}

func TestFingerprint_Empty(t *testing.T) {
	if fp := Fingerprint(nil); fp != 0 {
		t.Errorf("empty input should produce fingerprint 0, got: %064b", fp)
	}
}

func TestFingerprint_SingleToken(t *testing.T) {
	if Fingerprint([]string{"div"}) == 0 {
		t.Error("single token should produce a non-zero fingerprint")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	if !Similar(0xF0, 0xF0, 0) {
		t.Error("identical fingerprints should be similar at threshold 0")
	}
	if Similar(0, 0x7, 2) {
		t.Error("distance 3 should not be similar at threshold 2")
	}
	if !Similar(0, 0x7, 3) {
		t.Error("distance 3 should be similar at threshold 3")
	}
}

func TestHexRoundTrip(t *testing.T) {
	fp := uint64(0x00ab_cdef_0123_4567)
	s := Hex(fp)
	if s != "00abcdef01234567" {
		t.Fatalf("Hex = %q", s)
	}
	got, err := ParseHex(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != fp {
		t.Errorf("ParseHex(Hex(fp)) = %x, want %x", got, fp)
	}
	if _, err := ParseHex("not-hex"); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestLayout_IgnoresContent(t *testing.T) {
	a := `<div class="review"><span class="author">Anna</span><p class="text">Great place</p></div>`
	b := `<div class="review"><span class="author">Petr</span><p class="text">Too loud, will not return</p></div>`

	if Layout(a) != Layout(b) {
		t.Errorf("same markup with different text should match, distance: %d", Distance(Layout(a), Layout(b)))
	}
}

func TestLayout_IgnoresModifierClassesAndOrder(t *testing.T) {
	a := `<div class="card review"><span class="star _full"></span><span class="star _full"></span><span class="star"></span></div>`
	b := `<div class="review card"><span class="star"></span><span class="star _empty"></span><span class="star _full"></span></div>`

	if Layout(a) != Layout(b) {
		t.Error("modifier classes and class order should not affect the layout fingerprint")
	}
}

func TestLayout_RenamedClassesMove(t *testing.T) {
	a := `<div class="review"><span class="author"></span><p class="text"></p><div class="photos"><img></div></div>`
	b := `<div class="rv-item"><span class="rv-user"></span><p class="rv-body"></p><div class="rv-gallery"><img></div></div>`

	if Layout(a) == Layout(b) {
		t.Error("renamed classes should change the layout fingerprint")
	}
}

func TestLayout_EmptyAndPlainText(t *testing.T) {
	if fp := Layout(""); fp != 0 {
		t.Errorf("empty HTML should produce 0, got %x", fp)
	}
	if fp := Layout("just some words"); fp != 0 {
		t.Errorf("text without tags should produce 0, got %x", fp)
	}
	if Layout("<br/>") == 0 {
		t.Error("a single tag should produce a non-zero fingerprint")
	}
}

func TestLayoutTokens(t *testing.T) {
	got := layoutTokens(`<div class="b a _x"><p>Hi</p><img src="x.png"/></div>`)
	want := []string{"div.a.b", "p", "img"}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestShingles(t *testing.T) {
	got := shingles([]string{"a", "b", "c", "d"}, 3)
	want := []string{"a b c", "b c d"}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("shingle[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if shingles([]string{"a", "b"}, 3) != nil {
		t.Error("too few tokens should produce nil")
	}
}

func TestTracker_Observe(t *testing.T) {
	tr := NewTracker(2)

	if d, drifted := tr.Observe("maps.example.com", 0b0000); d != 0 || drifted {
		t.Errorf("zero fingerprint should be ignored, got (%d, %v)", d, drifted)
	}
	if _, drifted := tr.Observe("maps.example.com", 0b0001); drifted {
		t.Error("first observation must not drift")
	}
	if d, drifted := tr.Observe("maps.example.com", 0b0011); d != 1 || drifted {
		t.Errorf("got (%d, %v), want (1, false)", d, drifted)
	}
	if d, drifted := tr.Observe("maps.example.com", 0b1100); d != 4 || !drifted {
		t.Errorf("got (%d, %v), want (4, true)", d, drifted)
	}
	if _, drifted := tr.Observe("other.example.com", 0b1111); drifted {
		t.Error("keys are tracked independently")
	}
}

func TestNewTracker_DefaultThreshold(t *testing.T) {
	if tr := NewTracker(0); tr.threshold != DefaultDriftThreshold {
		t.Errorf("threshold = %d, want %d", tr.threshold, DefaultDriftThreshold)
	}
}
