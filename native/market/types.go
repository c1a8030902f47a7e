package market

import "math/big"

// Direction labels the side of a trade.
type Direction string

const (
	// DirectionBuy marks native value entering the curve for tokens.
	DirectionBuy Direction = "buy"
	// DirectionSell marks tokens returning to the curve for native value.
	DirectionSell Direction = "sell"
)

// Token is a launched token and its curve state. The reserve is the pool of
// native value backing the token; it is mutated only by engine buys and sells.
// CurveSupply is the token inventory still held by the curve.
type Token struct {
	Address     [20]byte `json:"address"`
	Creator     [20]byte `json:"creator"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	TotalSupply *big.Int `json:"totalSupply"`
	Reserve     *big.Int `json:"reserve"`
	CurveSupply *big.Int `json:"curveSupply"`
	CreatedAt   int64    `json:"createdAt"`
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	clone.TotalSupply = copyBig(t.TotalSupply)
	clone.Reserve = copyBig(t.Reserve)
	clone.CurveSupply = copyBig(t.CurveSupply)
	return &clone
}

// DeployedToken is one entry of the discoverable launch list, ordered by
// creation.
type DeployedToken struct {
	Address   [20]byte `json:"address"`
	Creator   [20]byte `json:"creator"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	CreatedAt int64    `json:"createdAt"`
}

// TradeRecord captures a settled trade and its fee breakdown. Records are
// emitted, not stored; the event log is the durable audit trail.
type TradeRecord struct {
	ID           string    `json:"id"`
	Token        [20]byte  `json:"token"`
	Trader       [20]byte  `json:"trader"`
	Direction    Direction `json:"direction"`
	TokenAmount  *big.Int  `json:"tokenAmount"`
	Gross        *big.Int  `json:"gross"`
	Net          *big.Int  `json:"net"`
	PlatformFee  *big.Int  `json:"platformFee"`
	CreatorFee   *big.Int  `json:"creatorFee"`
	ReserveAfter *big.Int  `json:"reserveAfter"`
	Timestamp    int64     `json:"timestamp"`
}

// PlatformStats aggregates platform-wide counters. Every field is monotonic
// except TotalReserves, which tracks the sum of all token reserves so that
// emergency withdrawals can never touch reserve-backed value.
type PlatformStats struct {
	TotalTokensCreated uint64   `json:"totalTokensCreated"`
	CumulativeVolume   *big.Int `json:"cumulativeVolume"`
	CumulativeFees     *big.Int `json:"cumulativeFees"`
	TotalReserves      *big.Int `json:"totalReserves"`
}

// Clone returns a deep copy of the stats.
func (s *PlatformStats) Clone() *PlatformStats {
	if s == nil {
		return nil
	}
	clone := *s
	clone.CumulativeVolume = copyBig(s.CumulativeVolume)
	clone.CumulativeFees = copyBig(s.CumulativeFees)
	clone.TotalReserves = copyBig(s.TotalReserves)
	return &clone
}

// CreatorStats aggregates per-creator counters.
type CreatorStats struct {
	TokensCreated uint64   `json:"tokensCreated"`
	FeesEarned    *big.Int `json:"feesEarned"`
}

// Clone returns a deep copy of the stats.
func (s *CreatorStats) Clone() *CreatorStats {
	if s == nil {
		return nil
	}
	clone := *s
	clone.FeesEarned = copyBig(s.FeesEarned)
	return &clone
}

// PlatformSummary is the combined fee configuration and platform counters
// served by the stats read call.
type PlatformSummary struct {
	CreateFee          *big.Int `json:"createFee"`
	TradeFeeBps        uint32   `json:"tradeFeeBps"`
	CreatorFeeBps      uint32   `json:"creatorFeeBps"`
	FeeRecipient       [20]byte `json:"feeRecipient"`
	TotalTokensCreated uint64   `json:"totalTokensCreated"`
	CumulativeVolume   *big.Int `json:"cumulativeVolume"`
	CumulativeFees     *big.Int `json:"cumulativeFees"`
}

// Quote is a pricing preview for a prospective trade. Buys report the gross
// native cost including fees; sells report the net payout after fees.
type Quote struct {
	Direction   Direction `json:"direction"`
	TokenAmount *big.Int  `json:"tokenAmount"`
	Gross       *big.Int  `json:"gross"`
	Net         *big.Int  `json:"net"`
	PlatformFee *big.Int  `json:"platformFee"`
	CreatorFee  *big.Int  `json:"creatorFee"`
}

func newPlatformStats() *PlatformStats {
	return &PlatformStats{
		CumulativeVolume: big.NewInt(0),
		CumulativeFees:   big.NewInt(0),
		TotalReserves:    big.NewInt(0),
	}
}

func newCreatorStats() *CreatorStats {
	return &CreatorStats{FeesEarned: big.NewInt(0)}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
