package postgres

import (
	"testing"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/queue"
)

func caps(items ...string) map[string]struct{} {
	return queue.ToSet(items)
}

func TestEligibleTokensStrict(t *testing.T) {
	// Officer serves bill_payment in English. Token 1 has no service match,
	// token 2 wants Sinhala, token 3 matches on both axes.
	candidates := []candidate{
		{tokenID: "t1", services: caps("tech_support"), languages: caps("en")},
		{tokenID: "t2", services: caps("bill_payment"), languages: caps("si")},
		{tokenID: "t3", services: caps("bill_payment"), languages: caps("en")},
	}

	eligible := eligibleTokens(candidates, caps("bill_payment"), caps("en"), false)
	if len(eligible) != 1 || eligible[0] != "t3" {
		t.Fatalf("eligible = %v, want [t3]", eligible)
	}
}

func TestEligibleTokensKeepsQueueOrder(t *testing.T) {
	// Every serveable token stays in the list, in token-number order. When a
	// concurrent officer wins the claim on the first one, the assignment
	// falls through to the second instead of reporting an empty queue.
	candidates := []candidate{
		{tokenID: "t1", services: caps("bill_payment"), languages: caps("en")},
		{tokenID: "t2", services: caps("tech_support"), languages: caps("en")},
		{tokenID: "t3", services: caps("bill_payment"), languages: caps("en")},
	}

	eligible := eligibleTokens(candidates, caps("bill_payment"), caps("en"), false)
	if len(eligible) != 2 || eligible[0] != "t1" || eligible[1] != "t3" {
		t.Fatalf("eligible = %v, want [t1 t3]", eligible)
	}
}

func TestEligibleTokensSkipsEmptyLanguage(t *testing.T) {
	// No declared language means the match cannot be confirmed; the token is
	// skipped rather than treated as a wildcard.
	candidates := []candidate{
		{tokenID: "t1", services: caps("bill_payment"), languages: caps()},
		{tokenID: "t2", services: caps("bill_payment"), languages: caps("en")},
	}

	eligible := eligibleTokens(candidates, caps("bill_payment"), caps("en"), false)
	if len(eligible) != 1 || eligible[0] != "t2" {
		t.Fatalf("eligible = %v, want [t2]", eligible)
	}
}

func TestEligibleTokensNoMatch(t *testing.T) {
	candidates := []candidate{
		{tokenID: "t1", services: caps("tech_support"), languages: caps("en")},
	}

	if eligible := eligibleTokens(candidates, caps("bill_payment"), caps("en"), false); len(eligible) != 0 {
		t.Fatalf("eligible = %v, want none", eligible)
	}
	if eligible := eligibleTokens(nil, caps("bill_payment"), caps("en"), false); len(eligible) != 0 {
		t.Fatalf("eligible = %v, want none on empty queue", eligible)
	}
}

func TestEligibleTokensBypass(t *testing.T) {
	// Bypass ignores capabilities entirely; the whole queue is claimable in
	// order, oldest first.
	candidates := []candidate{
		{tokenID: "t1", services: caps("tech_support"), languages: caps()},
		{tokenID: "t2", services: caps("bill_payment"), languages: caps("en")},
	}

	eligible := eligibleTokens(candidates, caps("bill_payment"), caps("en"), true)
	if len(eligible) != 2 || eligible[0] != "t1" || eligible[1] != "t2" {
		t.Fatalf("eligible = %v, want [t1 t2]", eligible)
	}
}

func TestUncoveredTokens(t *testing.T) {
	tokens := []models.Token{
		{TokenID: "t1", ServiceTypes: []string{"loan_inquiry"}, PreferredLanguages: []string{"ta"}},
		{TokenID: "t2", ServiceTypes: []string{"bill_payment"}, PreferredLanguages: []string{"en"}},
		{TokenID: "t3", ServiceTypes: []string{"bill_payment"}},
	}

	// Only a bill_payment/en officer online: the loan_inquiry/ta token has no
	// coverage, the preference-less token is never escalated.
	online := []officerCaps{{services: caps("bill_payment"), languages: caps("en")}}
	unmatched := uncoveredTokens(tokens, online)
	if len(unmatched) != 1 || unmatched[0].TokenID != "t1" {
		t.Fatalf("unmatched = %+v, want only t1", unmatched)
	}

	// The loan_inquiry officer comes online; nothing is uncovered.
	online = append(online, officerCaps{services: caps("loan_inquiry"), languages: caps("ta")})
	if unmatched := uncoveredTokens(tokens, online); len(unmatched) != 0 {
		t.Fatalf("unmatched = %+v, want none", unmatched)
	}

	// No officers online at all: every token with declared preferences is
	// uncovered.
	if unmatched := uncoveredTokens(tokens, nil); len(unmatched) != 2 {
		t.Fatalf("unmatched = %+v, want t1 and t2", unmatched)
	}
}

func TestNormalizeMobile(t *testing.T) {
	cases := []struct {
		raw    string
		prefix string
		want   string
	}{
		{"0771234567", "94", "94771234567"},
		{"+94 77 123 4567", "94", "94771234567"},
		{"077-123 4567", "", "0771234567"},
		{"771234567", "94", "94771234567"},
		{"94771234567", "94", "94771234567"},
	}
	for _, tt := range cases {
		if got := NormalizeMobile(tt.raw, tt.prefix); got != tt.want {
			t.Fatalf("NormalizeMobile(%q, %q)=%q, want %q", tt.raw, tt.prefix, got, tt.want)
		}
	}
}

func TestReferenceCode(t *testing.T) {
	got := ReferenceCode("6f1f9a2b-3c4d-5e6f-7a8b-9c0d1e2f3a4b")
	if got != "SR-6F1F9A2B" {
		t.Fatalf("ReferenceCode=%q", got)
	}
	if short := ReferenceCode("ab"); short != "SR-AB" {
		t.Fatalf("ReferenceCode short=%q", short)
	}
}
