package format

import (
	"strings"
	"testing"
)

func TestWorstChainShape(t *testing.T) {
	chain := BuildVideoFormatPreference("worst")
	parts := strings.Split(chain, "/")
	if parts[0] != "wv*+wa" {
		t.Fatalf("chain starts with %q, want wv*+wa", parts[0])
	}
	if parts[len(parts)-1] != "b" {
		t.Fatalf("chain ends with %q, want b", parts[len(parts)-1])
	}
	if !strings.Contains(chain, "bv*+ba") {
		t.Fatalf("chain missing combined-best fallback: %s", chain)
	}
}

func TestGoodCapsHeightAt1080(t *testing.T) {
	chain := BuildVideoFormatPreference("good")
	if !strings.HasPrefix(chain, "bv*[height<=1080]+ba[abr<=192]") {
		t.Fatalf("unexpected chain head: %s", chain)
	}
	if strings.Contains(chain, "height<=1440") || strings.Contains(chain, "height<=2160") {
		t.Fatalf("good must cap at 1080: %s", chain)
	}
}

func TestBestHasNoCaps(t *testing.T) {
	chain := BuildVideoFormatPreference("best")
	if strings.Contains(chain, "height<=") || strings.Contains(chain, "abr<=") {
		t.Fatalf("best must be uncapped: %s", chain)
	}
	if !strings.HasSuffix(chain, "/b") {
		t.Fatalf("chain must end with single-file best: %s", chain)
	}
}

func TestUnknownQualityFallsBackToBest(t *testing.T) {
	if got, want := BuildVideoFormatPreference("ultra"), BuildVideoFormatPreference("best"); got != want {
		t.Fatalf("unknown quality = %q, want %q", got, want)
	}
}

func TestChainHasNoDuplicates(t *testing.T) {
	for _, q := range []string{"best", "good", "normal", "bad", "worst"} {
		seen := map[string]bool{}
		for _, sel := range strings.Split(BuildVideoFormatPreference(q), "/") {
			if seen[sel] {
				t.Fatalf("duplicate selector %q for quality %s", sel, q)
			}
			seen[sel] = true
		}
	}
}

func TestAudioPreference(t *testing.T) {
	if got := BuildAudioFormatPreference("good"); got != "ba[abr<=192]/ba/b" {
		t.Fatalf("audio good = %q", got)
	}
	if got := BuildAudioFormatPreference("worst"); got != "wa/wa*/ba/b" {
		t.Fatalf("audio worst = %q", got)
	}
	if got := BuildAudioFormatPreference("best"); got != "ba/ba*/b" {
		t.Fatalf("audio best = %q", got)
	}
}
