package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
)

func TestBlockAvailability(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	paymentID := snowflake.ID(42)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name          string
		block         Block
		wantAvailable bool
		wantExhausted bool
	}{
		{
			name:          "fresh block without expiry",
			block:         Block{ID: 1},
			wantAvailable: true,
		},
		{
			name:          "fresh block before expiry",
			block:         Block{ID: 2, ExpiresAt: &future},
			wantAvailable: true,
		},
		{
			name:  "expired block",
			block: Block{ID: 3, ExpiresAt: &past},
		},
		{
			name:          "consumed block",
			block:         Block{ID: 4, PaymentID: &paymentID},
			wantExhausted: true,
		},
		{
			name:          "consumed block keeps exhausted past expiry",
			block:         Block{ID: 5, PaymentID: &paymentID, ExpiresAt: &past},
			wantExhausted: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.block.IsAvailable(now); got != tc.wantAvailable {
				t.Fatalf("IsAvailable = %v, want %v", got, tc.wantAvailable)
			}
			if got := tc.block.IsExhausted(); got != tc.wantExhausted {
				t.Fatalf("IsExhausted = %v, want %v", got, tc.wantExhausted)
			}
		})
	}
}
