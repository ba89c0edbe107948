package domain

import "testing"

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    DraftStatus
		to      DraftStatus
		allowed bool
	}{
		{DraftStatusDraft, DraftStatusApproved, true},
		{DraftStatusDraft, DraftStatusRejected, true},
		{DraftStatusDraft, DraftStatusSuperseded, true},
		{DraftStatusDraft, DraftStatusPublished, false},
		{DraftStatusApproved, DraftStatusPublished, true},
		{DraftStatusApproved, DraftStatusRejected, true},
		{DraftStatusApproved, DraftStatusSuperseded, true},
		{DraftStatusApproved, DraftStatusDraft, false},
		{DraftStatusRejected, DraftStatusApproved, false},
		{DraftStatusRejected, DraftStatusPublished, false},
		{DraftStatusPublished, DraftStatusApproved, false},
		{DraftStatusPublished, DraftStatusSuperseded, false},
		{DraftStatusSuperseded, DraftStatusApproved, false},
		{DraftStatusSuperseded, DraftStatusDraft, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %t, want %t", tc.from, tc.to, got, tc.allowed)
		}
	}
}
