package sfen

import (
	"testing"
)

func TestParseInitialPosition(t *testing.T) {
	p, err := Parse(Initial)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Turn != "b" {
		t.Fatalf("turn = %q, want b", p.Turn)
	}
	if p.Board[0][0] != "l" || p.Board[0][4] != "k" {
		t.Fatalf("unexpected back rank: %v", p.Board[0])
	}
	if p.Board[1][1] != "r" || p.Board[1][7] != "b" {
		t.Fatalf("unexpected second rank: %v", p.Board[1])
	}
	for x := 0; x < 9; x++ {
		if p.Board[4][x] != "" {
			t.Fatalf("middle rank cell %d not empty: %q", x, p.Board[4][x])
		}
		if p.Board[6][x] != "P" {
			t.Fatalf("pawn rank cell %d = %q, want P", x, p.Board[6][x])
		}
	}
	if len(p.HandBlack) != 0 || len(p.HandWhite) != 0 || len(p.Stock) != 0 {
		t.Fatalf("expected empty hands and stock")
	}
}

func TestParseHandsAndStock(t *testing.T) {
	p, err := Parse("9/9/9/9/4+P4/9/9/9/9 w 2Pb3pR 2KR18p")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Board[4][4] != "+P" {
		t.Fatalf("cell 4,4 = %q, want +P", p.Board[4][4])
	}
	if p.HandBlack["P"] != 2 || p.HandBlack["R"] != 1 {
		t.Fatalf("black hand = %v", p.HandBlack)
	}
	if p.HandWhite["b"] != 1 || p.HandWhite["p"] != 3 {
		t.Fatalf("white hand = %v", p.HandWhite)
	}
	if p.Stock["K"] != 2 || p.Stock["R"] != 1 || p.Stock["p"] != 18 {
		t.Fatalf("stock = %v", p.Stock)
	}
}

func TestParseShortRowIsPadded(t *testing.T) {
	p, err := Parse("l/9/9/9/9/9/9/9/9 b -")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Board[0][0] != "l" {
		t.Fatalf("cell 0,0 = %q", p.Board[0][0])
	}
	for x := 1; x < 9; x++ {
		if p.Board[0][x] != "" {
			t.Fatalf("cell 0,%d = %q, want empty", x, p.Board[0][x])
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"too few fields", "9/9/9/9/9/9/9/9/9 b"},
		{"too many fields", "9/9/9/9/9/9/9/9/9 b - - -"},
		{"eight rows", "9/9/9/9/9/9/9/9 b -"},
		{"row overflow", "ppppppppp1/9/9/9/9/9/9/9/9 b -"},
		{"digit overflow", "55/9/9/9/9/9/9/9/9 b -"},
		{"bad character", "9/9/9/9/4x4/9/9/9/9 b -"},
		{"dangling promotion", "9/9/9/9/8+/9/9/9/9 b -"},
		{"promoted gold", "9/9/9/9/4+G4/9/9/9/9 b -"},
		{"bad turn", "9/9/9/9/9/9/9/9/9 x -"},
		{"hand trailing count", "9/9/9/9/9/9/9/9/9 b 2"},
		{"hand bad character", "9/9/9/9/9/9/9/9/9 b ?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.text); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.text)
			} else if _, ok := err.(*ParseError); !ok {
				t.Fatalf("error type %T, want *ParseError", err)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	texts := []string{
		Initial,
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL w -",
		"9/9/9/9/4k4/9/9/9/9 b 2P18p",
		"8l/9/9/9/9/9/9/9/L8 w Gg 2Pp",
		"+p8/9/9/9/9/9/9/9/8+P b PLNSGBRplnsgbr",
	}
	for _, text := range texts {
		p, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		if got := p.Serialize(); got != text {
			t.Fatalf("round trip = %q, want %q", got, text)
		}
	}
}

func TestSerializeEmptyHandsIsDash(t *testing.T) {
	p, err := Parse("9/9/9/9/9/9/9/9/9 b -")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.Serialize(); got != "9/9/9/9/9/9/9/9/9 b -" {
		t.Fatalf("Serialize = %q", got)
	}
}

func TestMirror(t *testing.T) {
	p, err := Parse("+R8/9/9/9/9/9/9/9/8p b 2Pg")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := Mirror(p)
	if m.Board[0][0] != "P" {
		t.Fatalf("mirrored 0,0 = %q, want P", m.Board[0][0])
	}
	if m.Board[8][8] != "+r" {
		t.Fatalf("mirrored 8,8 = %q, want +r", m.Board[8][8])
	}
	if m.HandBlack["G"] != 1 {
		t.Fatalf("mirrored black hand = %v", m.HandBlack)
	}
	if m.HandWhite["p"] != 2 {
		t.Fatalf("mirrored white hand = %v", m.HandWhite)
	}
	if m.Turn != "b" {
		t.Fatalf("mirrored turn = %q", m.Turn)
	}
}

func TestMirrorInvolution(t *testing.T) {
	texts := []string{
		Initial,
		"+R8/9/9/9/9/9/9/9/8p w 2Pg 2Kk",
		"9/9/9/9/4+b4/9/9/9/9 b RBp",
	}
	for _, text := range texts {
		p, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		if got := Mirror(Mirror(p)).Serialize(); got != p.Serialize() {
			t.Fatalf("mirror involution broken: %q -> %q", p.Serialize(), got)
		}
	}
}
