package curve

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrInvalidAmount rejects zero or negative trade sizes.
	ErrInvalidAmount = errors.New("curve: amount must be positive")
	// ErrInvalidState rejects malformed reserve state.
	ErrInvalidState = errors.New("curve: reserve state must be non-negative")
	// ErrInsufficientInventory marks a buy larger than the curve's remaining
	// token inventory.
	ErrInsufficientInventory = errors.New("curve: insufficient token inventory")
	// ErrInsufficientLiquidity marks a sell whose proceeds would exceed the
	// native reserve backing the token.
	ErrInsufficientLiquidity = errors.New("curve: insufficient reserve liquidity")
	// ErrAmountOverflow marks a computed quantity that does not fit the
	// 256-bit value range. It is raised before any state is touched.
	ErrAmountOverflow = errors.New("curve: amount exceeds 256-bit range")
)

// VirtualNativeReserve is the constant-product virtual native offset. It gives
// the curve a finite, nonzero spot price while the real reserve is empty and
// fixes the steepness of the launch curve. One full native unit at 18
// decimals.
var VirtualNativeReserve = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// InitialTokenSupply is the token inventory every launched token starts with:
// one billion tokens at 18 decimals, all held by the curve.
var InitialTokenSupply = new(big.Int).Mul(big.NewInt(1_000_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// BuyCost prices a purchase of tokensOut against the constant product of the
// offset native reserve and the remaining curve inventory. The cost rounds up,
// so the reserve side never loses value to integer division. The returned cost
// is the net amount that must reach the reserve; fee carving happens above the
// curve.
func BuyCost(reserve, supply, tokensOut *big.Int) (*big.Int, error) {
	if err := checkState(reserve, supply); err != nil {
		return nil, err
	}
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if tokensOut.Cmp(supply) >= 0 {
		return nil, ErrInsufficientInventory
	}
	x := new(big.Int).Add(reserve, VirtualNativeReserve)
	k := new(big.Int).Mul(x, supply)
	newSupply := new(big.Int).Sub(supply, tokensOut)
	cost := ceilDiv(k, newSupply)
	cost = cost.Sub(cost, x)
	if !fitsUint256(cost) || !fitsUint256(new(big.Int).Add(reserve, cost)) {
		return nil, ErrAmountOverflow
	}
	return cost, nil
}

// SellProceeds prices a sale of tokensIn back into the curve. Proceeds round
// down, so a buy followed by selling the exact output never returns more
// native value than was paid in, even before fees. The full proceeds are
// withdrawn from the reserve; fee carving happens above the curve.
func SellProceeds(reserve, supply, tokensIn *big.Int) (*big.Int, error) {
	if err := checkState(reserve, supply); err != nil {
		return nil, err
	}
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	x := new(big.Int).Add(reserve, VirtualNativeReserve)
	k := new(big.Int).Mul(x, supply)
	newSupply := new(big.Int).Add(supply, tokensIn)
	if !fitsUint256(newSupply) {
		return nil, ErrAmountOverflow
	}
	proceeds := new(big.Int).Sub(x, ceilDiv(k, newSupply))
	if proceeds.Sign() < 0 {
		proceeds = big.NewInt(0)
	}
	if proceeds.Cmp(reserve) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	return proceeds, nil
}

// SpotPrice reports the current marginal price as a (native, token) rational.
// Read-only helper for quoting; trades always price through BuyCost and
// SellProceeds.
func SpotPrice(reserve, supply *big.Int) (*big.Int, *big.Int, error) {
	if err := checkState(reserve, supply); err != nil {
		return nil, nil, err
	}
	x := new(big.Int).Add(reserve, VirtualNativeReserve)
	return x, new(big.Int).Set(supply), nil
}

func checkState(reserve, supply *big.Int) error {
	if reserve == nil || reserve.Sign() < 0 || supply == nil || supply.Sign() <= 0 {
		return ErrInvalidState
	}
	if !fitsUint256(reserve) || !fitsUint256(supply) {
		return ErrAmountOverflow
	}
	return nil
}

func ceilDiv(numerator, denominator *big.Int) *big.Int {
	quotient, remainder := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient = quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

func fitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}
