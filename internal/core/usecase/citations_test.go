package usecase

import (
	"testing"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

func TestRenumberCitationsOrdinals(t *testing.T) {
	tokenA := domain.SourceToken("uuid-a", "ra-7394.txt")
	tokenB := domain.SourceToken("uuid-b", "ra-10173.txt")

	text := "Consumer protection is governed by " + tokenA + " while data privacy falls under [" + tokenB + "]."
	got := RenumberCitations(text, []string{tokenA, tokenB})

	want := "Consumer protection is governed by [1] while data privacy falls under [2]."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenumberCitationsRemovesUnknownTokens(t *testing.T) {
	known := domain.SourceToken("uuid-a", "doc.txt")
	stale := domain.SourceToken("uuid-z", "gone.txt")

	text := "See " + known + " and " + stale + " for details."
	got := RenumberCitations(text, []string{known})

	want := "See [1] and for details."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenumberCitationsNoSources(t *testing.T) {
	token := domain.SourceToken("uuid-a", "doc.txt")
	got := RenumberCitations("Cited in "+token+" only.", nil)
	if got != "Cited in  only." && got != "Cited in only." {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenumberCitationsPlainTextUntouched(t *testing.T) {
	text := "No citations appear in this sentence."
	if got := RenumberCitations(text, []string{domain.SourceToken("u", "f")}); got != text {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}
