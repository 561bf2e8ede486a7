package uci

import "testing"

func TestIsNoMove(t *testing.T) {
	tests := []struct {
		name string
		move string
		want bool
	}{
		{"empty", "", true},
		{"zeros", "0000", true},
		{"none-paren", "(none)", true},
		{"real move", "e2e4", false},
		{"drop move", "P@e4", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoMove(tt.move); got != tt.want {
				t.Errorf("IsNoMove(%q) = %v, want %v", tt.move, got, tt.want)
			}
		})
	}
}

func TestParseBestMove(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantMove   string
		wantPonder string
	}{
		{"plain", "bestmove e2e4", "e2e4", ""},
		{"with ponder", "bestmove e2e4 ponder e7e5", "e2e4", "e7e5"},
		{"no move", "bestmove 0000", "0000", ""},
		{"promotion", "bestmove e7e8q", "e7e8q", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm := parseBestMove(tt.line)
			if bm.Move != tt.wantMove || bm.Ponder != tt.wantPonder {
				t.Errorf("parseBestMove(%q) = %+v, want move=%q ponder=%q", tt.line, bm, tt.wantMove, tt.wantPonder)
			}
		})
	}
}

func TestParseInfoLineCentipawn(t *testing.T) {
	info := parseInfoLine("info depth 12 seldepth 18 score cp 23 nodes 12345 time 501 pv e2e4 e7e5", Info{})
	if info.Depth != 12 {
		t.Errorf("Depth = %d, want 12", info.Depth)
	}
	if info.Score.CP == nil || *info.Score.CP != 23 {
		t.Errorf("Score.CP = %v, want 23", info.Score.CP)
	}
	if info.Score.Mate != nil {
		t.Errorf("Score.Mate = %v, want nil", info.Score.Mate)
	}
	if info.Nodes != 12345 {
		t.Errorf("Nodes = %d, want 12345", info.Nodes)
	}
	if info.TimeMS != 501 {
		t.Errorf("TimeMS = %d, want 501", info.TimeMS)
	}
	if len(info.PV) != 2 || info.PV[0] != "e2e4" {
		t.Errorf("PV = %v, want [e2e4 e7e5]", info.PV)
	}
}

func TestParseInfoLineMate(t *testing.T) {
	info := parseInfoLine("info depth 20 score mate 3 pv e2e4", Info{})
	if info.Score.Mate == nil || *info.Score.Mate != 3 {
		t.Errorf("Score.Mate = %v, want 3", info.Score.Mate)
	}
	if info.Score.CP != nil {
		t.Errorf("Score.CP = %v, want nil", info.Score.CP)
	}
}

func TestParseInfoLineRetainsPreviousScoreWithoutOne(t *testing.T) {
	cp := 10
	prev := Info{Score: Score{CP: &cp}}
	info := parseInfoLine("info depth 12 nodes 500", prev)
	if info.Score.CP == nil || *info.Score.CP != 10 {
		t.Errorf("expected previous score to be retained, got %v", info.Score)
	}
}

func TestScoreString(t *testing.T) {
	cp := 150
	mate := -2
	tests := []struct {
		name string
		s    Score
		want string
	}{
		{"cp", Score{CP: &cp}, "cp 150"},
		{"mate", Score{Mate: &mate}, "mate -2"},
		{"none", Score{}, "none"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
