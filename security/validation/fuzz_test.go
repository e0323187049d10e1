package validation

import (
	"testing"

	fuzz "github.com/google/gofuzz"
)

func asciiStrings(s *string, c fuzz.Continue) {
	b := make([]byte, c.Intn(MaxStoryBytes+100))
	for i := range b {
		b[i] = byte(' ' + c.Intn('~'-' '+1))
	}
	*s = string(b)
}

func TestNormalizeStoryAcceptedOutputIsBounded(t *testing.T) {
	check := func(story string) {
		out, err := NormalizeStory(story)
		if err != nil {
			return
		}
		if len(out) > MaxStoryBytes {
			t.Fatalf("accepted story of %d bytes", len(out))
		}
		for _, r := range out {
			if r != '\n' && r != '\t' && (r < ' ' || r > '~') {
				t.Fatalf("accepted non printable rune %q", r)
			}
		}
	}

	unicode := fuzz.NewWithSeed(1).NilChance(0)
	ascii := fuzz.NewWithSeed(2).NilChance(0).Funcs(asciiStrings)
	for i := 0; i < 500; i++ {
		var s string
		unicode.Fuzz(&s)
		check(s)
		ascii.Fuzz(&s)
		check(s)
	}
}

func TestNormalizeStoryRejectsOversized(t *testing.T) {
	f := fuzz.NewWithSeed(3).NilChance(0).Funcs(asciiStrings)
	for i := 0; i < 200; i++ {
		var s string
		f.Fuzz(&s)
		if len(s) <= MaxStoryBytes {
			continue
		}
		if _, err := NormalizeStory(s); err == nil {
			t.Fatalf("story of %d bytes was accepted", len(s))
		}
	}
}
