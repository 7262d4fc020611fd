package style

import (
	"reflect"
	"testing"
)

func TestSegmentGreetingThenWeather(t *testing.T) {
	decisions := Segment("Good morning! The weather is sunny.")
	if len(decisions) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(decisions))
	}
	if decisions[0].Style != Cheerful {
		t.Fatalf("expected cheerful for greeting, got %s", decisions[0].Style)
	}
	if decisions[1].Style != Friendly || decisions[1].Category != Weather {
		t.Fatalf("expected friendly weather, got %s/%s", decisions[1].Style, decisions[1].Category)
	}
}

func TestClassifyCategories(t *testing.T) {
	cases := []struct {
		sentence string
		category Category
		style    Name
	}{
		{"Hey there.", Greeting, Cheerful},
		{"Your meeting starts at noon.", Scheduling, Assistant},
		{"Don't forget your umbrella keys.", Caution, Empathetic},
		{"I recommend the pasta.", Suggestion, Hopeful},
		{"Let me know if you need anything.", HelpOffer, Friendly},
		{"That is fantastic news.", Enthusiasm, Excited},
		{"The capital of France is Paris.", General, Friendly},
		{"We did it!!", Enthusiasm, Excited},
	}

	for _, tc := range cases {
		got := Classify(tc.sentence)
		if got.Category != tc.category || got.Style != tc.style {
			t.Errorf("Classify(%q) = %s/%s, want %s/%s", tc.sentence, got.Category, got.Style, tc.category, tc.style)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// 同时命中 scheduling 与 caution，scheduling 优先级更高。
	got := Classify("Remember your appointment at 3 o'clock.")
	if got.Category != Scheduling {
		t.Fatalf("expected scheduling to win, got %s", got.Category)
	}

	got = Classify("Hello, how can I help?")
	if got.Category != Greeting {
		t.Fatalf("expected greeting to win over help offer, got %s", got.Category)
	}
}

func TestClassifyWordBoundaries(t *testing.T) {
	got := Classify("This is the brain of the system.")
	if got.Category != General {
		t.Fatalf("expected general, got %s", got.Category)
	}
}

func TestClassifyDefaultDegree(t *testing.T) {
	got := Classify("Plain statement.")
	if got.Degree != DefaultDegree {
		t.Fatalf("expected default degree %.1f, got %.1f", DefaultDegree, got.Degree)
	}
}

func TestSplitSentences(t *testing.T) {
	cases := map[string][]string{
		"":                                 nil,
		"One sentence":                     {"One sentence"},
		"It costs 3.50 today. Buy it!":     {"It costs 3.50 today.", "Buy it!"},
		"Really?! Yes.\nNew line here":     {"Really?!", "Yes.", "New line here"},
		`She said "hi." Then left.`:        {`She said "hi."`, "Then left."},
		"  spaced   out.   second one.  ": {"spaced   out.", "second one."},
	}

	for input, want := range cases {
		got := SplitSentences(input)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("SplitSentences(%q) = %#v, want %#v", input, got, want)
		}
	}
}
