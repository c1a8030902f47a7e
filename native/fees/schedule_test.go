package fees

import (
	"errors"
	"math/big"
	"testing"
)

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name    string
		trade   uint32
		creator uint32
		wantErr bool
	}{
		{name: "zero", trade: 0, creator: 0},
		{name: "typical", trade: 100, creator: 50},
		{name: "boundary", trade: 9_000, creator: 1_000},
		{name: "over", trade: 9_000, creator: 1_001, wantErr: true},
		{name: "trade alone over", trade: 10_001, creator: 0, wantErr: true},
		{name: "creator alone over", trade: 0, creator: 10_001, wantErr: true},
		{name: "sum wraps uint32", trade: 4_294_962_296, creator: 5_000, wantErr: true},
		{name: "both at max uint32", trade: 4_294_967_295, creator: 4_294_967_295, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Schedule{TradeFeeBps: tc.trade, CreatorFeeBps: tc.creator}
			err := s.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitConservation(t *testing.T) {
	schedule := Schedule{TradeFeeBps: 100, CreatorFeeBps: 50}
	for _, gross := range []int64{1, 7, 99, 10_000, 10_001, 123_456_789} {
		g := big.NewInt(gross)
		out := Split(g, schedule)
		sum := new(big.Int).Add(out.PlatformFee, out.CreatorFee)
		sum = sum.Add(sum, out.Net)
		if sum.Cmp(g) != 0 {
			t.Fatalf("split of %d leaks value: platform=%s creator=%s net=%s", gross, out.PlatformFee, out.CreatorFee, out.Net)
		}
	}
}

func TestSplitTruncationAccruesToNet(t *testing.T) {
	schedule := Schedule{TradeFeeBps: 100, CreatorFeeBps: 50}
	out := Split(big.NewInt(10_001), schedule)
	if out.PlatformFee.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("platform fee truncation wrong: %s", out.PlatformFee)
	}
	if out.CreatorFee.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("creator fee truncation wrong: %s", out.CreatorFee)
	}
	if out.Net.Cmp(big.NewInt(9_851)) != 0 {
		t.Fatalf("remainder did not accrue to net: %s", out.Net)
	}
}

func TestSplitZeroGross(t *testing.T) {
	out := Split(nil, Schedule{TradeFeeBps: 100})
	if out.Net.Sign() != 0 || out.PlatformFee.Sign() != 0 || out.CreatorFee.Sign() != 0 {
		t.Fatalf("nil gross must split to zero")
	}
}

func TestGrossForNetCoversNet(t *testing.T) {
	schedule := Schedule{TradeFeeBps: 100, CreatorFeeBps: 50}
	for _, net := range []int64{1, 2, 9_851, 10_000, 987_654_321} {
		want := big.NewInt(net)
		gross, err := GrossForNet(want, schedule)
		if err != nil {
			t.Fatalf("gross derivation failed for %d: %v", net, err)
		}
		out := Split(gross, schedule)
		if out.Net.Cmp(want) < 0 {
			t.Fatalf("gross %s leaves net %s short of %s", gross, out.Net, want)
		}
		// The overshoot is bounded by the bps granularity.
		overshoot := new(big.Int).Sub(out.Net, want)
		if overshoot.Cmp(big.NewInt(2)) > 0 {
			t.Fatalf("gross %s overshoots net %d by %s", gross, net, overshoot)
		}
	}
}

func TestGrossForNetRejectsFullConsumption(t *testing.T) {
	schedule := Schedule{TradeFeeBps: 9_950, CreatorFeeBps: 50}
	if _, err := GrossForNet(big.NewInt(10), schedule); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig at 10000 bps, got %v", err)
	}
}
