package fees

import (
	"errors"
	"math/big"
)

// BpsDenominator is the fee resolution: fee fractions are integers out of 10000.
const BpsDenominator = 10_000

// ErrInvalidConfig marks a fee configuration whose combined trade and creator
// rates would consume more than the full trade amount.
var ErrInvalidConfig = errors.New("fees: combined rate exceeds 10000 bps")

// Schedule is the active platform fee configuration. Instances are replaced
// whole on update; callers must never mutate a shared schedule in place.
type Schedule struct {
	CreateFee     *big.Int
	TradeFeeBps   uint32
	CreatorFeeBps uint32
	Recipient     [20]byte
}

// Validate enforces the combined fee bound. The 10000 bps boundary is
// accepted. Each rate is bounded individually first so the combined check
// cannot wrap around uint32.
func (s Schedule) Validate() error {
	if s.TradeFeeBps > BpsDenominator || s.CreatorFeeBps > BpsDenominator {
		return ErrInvalidConfig
	}
	if s.TradeFeeBps+s.CreatorFeeBps > BpsDenominator {
		return ErrInvalidConfig
	}
	return nil
}

// TotalBps returns the combined trade and creator rate.
func (s Schedule) TotalBps() uint32 {
	return s.TradeFeeBps + s.CreatorFeeBps
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	clone := s
	if s.CreateFee != nil {
		clone.CreateFee = new(big.Int).Set(s.CreateFee)
	} else {
		clone.CreateFee = big.NewInt(0)
	}
	return clone
}

// Breakdown is the lossless three-way split of a gross trade amount. The
// identity Gross == PlatformFee + CreatorFee + Net holds for every split;
// integer truncation of the fee legs leaves the remainder in Net.
type Breakdown struct {
	PlatformFee *big.Int
	CreatorFee  *big.Int
	Net         *big.Int
}

// Split carves the platform and creator fees out of the gross amount per the
// schedule. Fee legs truncate toward zero, so the rounding remainder always
// accrues to the net leg.
func Split(gross *big.Int, s Schedule) Breakdown {
	out := Breakdown{
		PlatformFee: big.NewInt(0),
		CreatorFee:  big.NewInt(0),
		Net:         big.NewInt(0),
	}
	if gross == nil || gross.Sign() <= 0 {
		return out
	}
	denominator := big.NewInt(BpsDenominator)
	if s.TradeFeeBps > 0 {
		fee := new(big.Int).Mul(gross, big.NewInt(int64(s.TradeFeeBps)))
		out.PlatformFee = fee.Div(fee, denominator)
	}
	if s.CreatorFeeBps > 0 {
		fee := new(big.Int).Mul(gross, big.NewInt(int64(s.CreatorFeeBps)))
		out.CreatorFee = fee.Div(fee, denominator)
	}
	net := new(big.Int).Sub(gross, out.PlatformFee)
	out.Net = net.Sub(net, out.CreatorFee)
	return out
}

// GrossForNet derives the smallest gross amount whose split leaves at least the
// requested net amount after fees. Buys use this to carve fees from the
// caller's payment while still delivering the curve-required value to the
// reserve.
func GrossForNet(net *big.Int, s Schedule) (*big.Int, error) {
	if net == nil || net.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	total := s.TotalBps()
	if total >= BpsDenominator {
		return nil, ErrInvalidConfig
	}
	if total == 0 {
		return new(big.Int).Set(net), nil
	}
	numerator := new(big.Int).Mul(net, big.NewInt(BpsDenominator))
	remainder := new(big.Int)
	gross, remainder := numerator.QuoRem(numerator, big.NewInt(int64(BpsDenominator-total)), remainder)
	if remainder.Sign() != 0 {
		gross = gross.Add(gross, big.NewInt(1))
	}
	return gross, nil
}
