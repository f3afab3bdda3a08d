package domain

import "testing"

func TestTierValid(t *testing.T) {
	for _, tier := range []Tier{TierFree, TierPremium, TierPro} {
		if !tier.Valid() {
			t.Errorf("expected %q to be valid", tier)
		}
	}
	for _, tier := range []Tier{"", "platinum", "FREE"} {
		if tier.Valid() {
			t.Errorf("expected %q to be invalid", tier)
		}
	}
}

func TestIsGuestID(t *testing.T) {
	if !IsGuestID("guest-3f2c") {
		t.Fatal("guest prefix must be recognized")
	}
	if IsGuestID("user-guest-3f2c") {
		t.Fatal("prefix must anchor at the start")
	}
	if IsGuestID("") {
		t.Fatal("empty id is not a guest")
	}
}
