package news

import "testing"

func TestInteractionKindWeights(t *testing.T) {
	tests := []struct {
		kind InteractionKind
		want float64
	}{
		{KindView, 1},
		{KindClick, 2},
		{KindShare, 3},
		{KindBookmark, 2},
		{KindComment, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Weight(); got != tt.want {
				t.Errorf("Weight(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}

	for _, raw := range []string{"", "like", "VIEW", "downvote"} {
		if _, err := ParseKind(raw); err == nil {
			t.Errorf("ParseKind(%q) = nil error, want rejection", raw)
		}
	}
}

func TestUnknownKindWeighsZero(t *testing.T) {
	if w := InteractionKind("like").Weight(); w != 0 {
		t.Errorf("unknown kind weight = %v, want 0", w)
	}
}
