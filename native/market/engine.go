package market

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"thousandx/core/events"
	"thousandx/core/types"
	"thousandx/native/curve"
	"thousandx/native/fees"
)

var (
	// ErrUnauthorized marks a caller lacking the owner role.
	ErrUnauthorized = errors.New("market engine: unauthorized")
	// ErrInvalidFeeConfig marks fee parameters violating the 10000 bps bound,
	// or a schedule whose combined rate leaves nothing for the reserve.
	ErrInvalidFeeConfig = errors.New("market engine: invalid fee configuration")
	// ErrInsufficientFee marks a token creation paid below the create fee.
	ErrInsufficientFee = errors.New("market engine: insufficient fee")
	// ErrInsufficientPayment marks a buy paid below the derived gross cost.
	ErrInsufficientPayment = errors.New("market engine: insufficient payment")
	// ErrInsufficientFunds marks an account balance short of the settlement.
	ErrInsufficientFunds = errors.New("market engine: insufficient balance")
	// ErrUnknownToken marks a token handle that was never registered.
	ErrUnknownToken = errors.New("market engine: unknown token")
	// ErrSlippageExceeded marks a trade priced beyond the caller's bound.
	ErrSlippageExceeded = errors.New("market engine: slippage exceeded")
	// ErrInsufficientLiquidity marks a sell the reserve cannot cover.
	ErrInsufficientLiquidity = errors.New("market engine: insufficient liquidity")
	// ErrAmountOverflow marks a computed quantity outside the 256-bit range.
	ErrAmountOverflow = errors.New("market engine: amount overflow")

	errNilState            = errors.New("market engine: state not configured")
	errVaultNotSet         = errors.New("market engine: reserve vault not configured")
	errOwnerNotSet         = errors.New("market engine: owner not configured")
	errFeesNotConfigured   = errors.New("market engine: fee schedule not configured")
	errInvalidAmount       = errors.New("market engine: amount must be positive")
	errInvalidMetadata     = errors.New("market engine: token name and symbol required")
	errTokenExists         = errors.New("market engine: token already exists")
	errIndexOutOfRange     = errors.New("market engine: token index out of range")
	errConservationBreach  = errors.New("market engine: fee split conservation breach")
	errNegativeCreateFee   = errors.New("market engine: create fee must not be negative")
	errDustTrade           = errors.New("market engine: trade too small to price")
	errNegativeTransfer    = errors.New("market engine: transfer amount must not be negative")
	errReserveInconsistent = errors.New("market engine: reserve accounting inconsistent")
)

const (
	maxTokenNameLen   = 64
	maxTokenSymbolLen = 16
)

type engineState interface {
	TokenGet(addr [20]byte) (*Token, bool, error)
	TokenPut(token *Token) error
	TokenIndexAppend(addr [20]byte) error
	TokenIndexList() ([][20]byte, error)
	TokenBalanceGet(token [20]byte, holder [20]byte) (*big.Int, error)
	TokenBalancePut(token [20]byte, holder [20]byte, balance *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	PlatformStatsGet() (*PlatformStats, bool, error)
	PlatformStatsPut(stats *PlatformStats) error
	CreatorStatsGet(creator [20]byte) (*CreatorStats, bool, error)
	CreatorStatsPut(creator [20]byte, stats *CreatorStats) error
	FeeScheduleGet() (*fees.Schedule, bool, error)
	FeeSchedulePut(schedule *fees.Schedule) error
	CreationNonce() (uint64, error)
	SetCreationNonce(nonce uint64) error
}

// Engine wires the launch factory, the trading curve and fee accounting with
// persistence and event emission. Every mutating operation runs to completion
// under a single mutex, and performs all validation and pricing before its
// first state write, so a failed call leaves state untouched.
type Engine struct {
	mu      sync.RWMutex
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	owner   [20]byte
	vault   [20]byte
}

// NewEngine constructs a market engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetOwner configures the identity allowed to call administrative operations.
func (e *Engine) SetOwner(addr [20]byte) { e.owner = addr }

// SetVault configures the account holding every token's native reserve.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// EnsureSchedule persists the supplied fee schedule if none is stored yet.
// Called once at boot with the deployment configuration.
func (e *Engine) EnsureSchedule(schedule fees.Schedule) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeeConfig, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.state.FeeScheduleGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	clone := schedule.Clone()
	return e.state.FeeSchedulePut(&clone)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// CreateToken charges the creation fee, mints a new token identity with an
// empty reserve and the full curve inventory, and appends it to the deployed
// list. Payment above the create fee is never debited.
func (e *Engine) CreateToken(creator [20]byte, name, symbol string, paid *big.Int) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	name = strings.TrimSpace(name)
	symbol = strings.TrimSpace(symbol)
	if name == "" || symbol == "" || len(name) > maxTokenNameLen || len(symbol) > maxTokenSymbolLen {
		return nil, errInvalidMetadata
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	schedule, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	createFee := copyBig(schedule.CreateFee)
	if paid == nil || paid.Cmp(createFee) < 0 {
		return nil, ErrInsufficientFee
	}
	creatorAccount, err := e.loadAccount(creator)
	if err != nil {
		return nil, err
	}
	if creatorAccount.Balance.Cmp(createFee) < 0 {
		return nil, ErrInsufficientFunds
	}
	nonce, err := e.state.CreationNonce()
	if err != nil {
		return nil, err
	}
	addr := DeriveTokenAddress(creator, nonce)
	if _, ok, err := e.state.TokenGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, errTokenExists
	}
	token := &Token{
		Address:     addr,
		Creator:     creator,
		Name:        name,
		Symbol:      symbol,
		TotalSupply: new(big.Int).Set(curve.InitialTokenSupply),
		Reserve:     big.NewInt(0),
		CurveSupply: new(big.Int).Set(curve.InitialTokenSupply),
		CreatedAt:   e.now(),
	}

	// Validation complete; settle.
	if createFee.Sign() > 0 {
		if err := e.move(creator, schedule.Recipient, createFee); err != nil {
			return nil, err
		}
	}
	if err := e.state.SetCreationNonce(nonce + 1); err != nil {
		return nil, err
	}
	if err := e.state.TokenPut(token); err != nil {
		return nil, err
	}
	if err := e.state.TokenIndexAppend(addr); err != nil {
		return nil, err
	}
	stats, err := e.loadPlatformStats()
	if err != nil {
		return nil, err
	}
	stats.TotalTokensCreated++
	stats.CumulativeFees = new(big.Int).Add(stats.CumulativeFees, createFee)
	if err := e.state.PlatformStatsPut(stats); err != nil {
		return nil, err
	}
	creatorStats, err := e.loadCreatorStats(creator)
	if err != nil {
		return nil, err
	}
	creatorStats.TokensCreated++
	if err := e.state.CreatorStatsPut(creator, creatorStats); err != nil {
		return nil, err
	}
	e.emit(TokenCreatedEvent(token))
	return token.Clone(), nil
}

// Buy purchases tokensOut from the curve. The token amount is the
// authoritative input; the native cost is derived, capped by maxNativeIn when
// one is supplied, and carved into platform fee, creator fee and the reserve
// contribution. Payment above the gross cost is never debited.
func (e *Engine) Buy(buyer [20]byte, tokenAddr [20]byte, tokensOut, maxNativeIn, paid *big.Int) (*TradeRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	token, schedule, err := e.loadTokenAndSchedule(tokenAddr)
	if err != nil {
		return nil, err
	}
	net, err := curve.BuyCost(token.Reserve, token.CurveSupply, tokensOut)
	if err != nil {
		return nil, translateCurveErr(err)
	}
	gross, err := fees.GrossForNet(net, schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeeConfig, err)
	}
	if !fitsUint256(gross) {
		return nil, ErrAmountOverflow
	}
	// A nil cap means uncapped; any supplied cap binds, including zero.
	if maxNativeIn != nil && gross.Cmp(maxNativeIn) > 0 {
		return nil, ErrSlippageExceeded
	}
	if paid == nil || paid.Cmp(gross) < 0 {
		return nil, ErrInsufficientPayment
	}
	buyerAccount, err := e.loadAccount(buyer)
	if err != nil {
		return nil, err
	}
	if buyerAccount.Balance.Cmp(gross) < 0 {
		return nil, ErrInsufficientFunds
	}
	split := fees.Split(gross, schedule)
	if err := checkConservation(gross, split); err != nil {
		return nil, err
	}
	holderBalance, err := e.state.TokenBalanceGet(tokenAddr, buyer)
	if err != nil {
		return nil, err
	}

	// Validation complete; settle. The reserve receives the net leg, so the
	// fee truncation remainder accrues to the reserve.
	if err := e.move(buyer, e.vault, split.Net); err != nil {
		return nil, err
	}
	if err := e.routeFees(buyer, token.Creator, schedule.Recipient, split); err != nil {
		return nil, err
	}
	token.Reserve = new(big.Int).Add(token.Reserve, split.Net)
	token.CurveSupply = new(big.Int).Sub(token.CurveSupply, tokensOut)
	if err := e.state.TokenPut(token); err != nil {
		return nil, err
	}
	newHolderBalance := new(big.Int).Add(copyBig(holderBalance), tokensOut)
	if err := e.state.TokenBalancePut(tokenAddr, buyer, newHolderBalance); err != nil {
		return nil, err
	}
	if err := e.recordTradeStats(token.Creator, gross, split, split.Net, false); err != nil {
		return nil, err
	}
	record := &TradeRecord{
		ID:           uuid.NewString(),
		Token:        tokenAddr,
		Trader:       buyer,
		Direction:    DirectionBuy,
		TokenAmount:  copyBig(tokensOut),
		Gross:        gross,
		Net:          split.Net,
		PlatformFee:  split.PlatformFee,
		CreatorFee:   split.CreatorFee,
		ReserveAfter: copyBig(token.Reserve),
		Timestamp:    e.now(),
	}
	e.emit(TradeEvent(record))
	return record, nil
}

// Sell returns tokensIn to the curve. The gross proceeds leave the reserve in
// full; fees are carved out of them and the seller receives the net, so the
// fee truncation remainder accrues to the seller.
func (e *Engine) Sell(seller [20]byte, tokenAddr [20]byte, tokensIn, minNativeOut *big.Int) (*TradeRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	token, schedule, err := e.loadTokenAndSchedule(tokenAddr)
	if err != nil {
		return nil, err
	}
	sellerBalance, err := e.state.TokenBalanceGet(tokenAddr, seller)
	if err != nil {
		return nil, err
	}
	sellerBalance = copyBig(sellerBalance)
	if sellerBalance.Cmp(tokensIn) < 0 {
		return nil, ErrInsufficientFunds
	}
	gross, err := curve.SellProceeds(token.Reserve, token.CurveSupply, tokensIn)
	if err != nil {
		return nil, translateCurveErr(err)
	}
	if gross.Sign() == 0 {
		return nil, errDustTrade
	}
	split := fees.Split(gross, schedule)
	if err := checkConservation(gross, split); err != nil {
		return nil, err
	}
	if minNativeOut != nil && split.Net.Cmp(minNativeOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	vaultAccount, err := e.loadAccount(e.vault)
	if err != nil {
		return nil, err
	}
	if vaultAccount.Balance.Cmp(gross) < 0 {
		return nil, errReserveInconsistent
	}

	// Validation complete; settle.
	if err := e.state.TokenBalancePut(tokenAddr, seller, new(big.Int).Sub(sellerBalance, tokensIn)); err != nil {
		return nil, err
	}
	if err := e.move(e.vault, seller, split.Net); err != nil {
		return nil, err
	}
	if err := e.routeFees(e.vault, token.Creator, schedule.Recipient, split); err != nil {
		return nil, err
	}
	token.Reserve = new(big.Int).Sub(token.Reserve, gross)
	token.CurveSupply = new(big.Int).Add(token.CurveSupply, tokensIn)
	if err := e.state.TokenPut(token); err != nil {
		return nil, err
	}
	if err := e.recordTradeStats(token.Creator, gross, split, gross, true); err != nil {
		return nil, err
	}
	record := &TradeRecord{
		ID:           uuid.NewString(),
		Token:        tokenAddr,
		Trader:       seller,
		Direction:    DirectionSell,
		TokenAmount:  copyBig(tokensIn),
		Gross:        gross,
		Net:          split.Net,
		PlatformFee:  split.PlatformFee,
		CreatorFee:   split.CreatorFee,
		ReserveAfter: copyBig(token.Reserve),
		Timestamp:    e.now(),
	}
	e.emit(TradeEvent(record))
	return record, nil
}

// SetPlatformFees replaces the active fee schedule. Owner only; the fee
// recipient is preserved across updates.
func (e *Engine) SetPlatformFees(caller [20]byte, createFee *big.Int, tradeBps, creatorBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if isZeroAddress(e.owner) {
		return errOwnerNotSet
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if createFee != nil && createFee.Sign() < 0 {
		return errNegativeCreateFee
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.loadSchedule()
	if err != nil {
		return err
	}
	next := fees.Schedule{
		CreateFee:     copyBig(createFee),
		TradeFeeBps:   tradeBps,
		CreatorFeeBps: creatorBps,
		Recipient:     current.Recipient,
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeeConfig, err)
	}
	if err := e.state.FeeSchedulePut(&next); err != nil {
		return err
	}
	e.emit(FeesUpdatedEvent(next.CreateFee.String(), tradeBps, creatorBps))
	return nil
}

// EmergencyWithdraw sweeps native value sitting in the vault beyond the sum of
// all token reserves to the owner. Reserve-backed value is untouchable by
// construction of the delta.
func (e *Engine) EmergencyWithdraw(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(e.owner) {
		return nil, errOwnerNotSet
	}
	if caller != e.owner {
		return nil, ErrUnauthorized
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	vaultAccount, err := e.loadAccount(e.vault)
	if err != nil {
		return nil, err
	}
	stats, err := e.loadPlatformStats()
	if err != nil {
		return nil, err
	}
	unallocated := new(big.Int).Sub(vaultAccount.Balance, stats.TotalReserves)
	if unallocated.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := e.move(e.vault, e.owner, unallocated); err != nil {
		return nil, err
	}
	e.emit(EmergencyWithdrawEvent(e.owner, unallocated.String()))
	return unallocated, nil
}

// PlatformSummary returns the active fee configuration and platform counters.
func (e *Engine) PlatformSummary() (*PlatformSummary, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	schedule, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	stats, err := e.loadPlatformStats()
	if err != nil {
		return nil, err
	}
	return &PlatformSummary{
		CreateFee:          copyBig(schedule.CreateFee),
		TradeFeeBps:        schedule.TradeFeeBps,
		CreatorFeeBps:      schedule.CreatorFeeBps,
		FeeRecipient:       schedule.Recipient,
		TotalTokensCreated: stats.TotalTokensCreated,
		CumulativeVolume:   copyBig(stats.CumulativeVolume),
		CumulativeFees:     copyBig(stats.CumulativeFees),
	}, nil
}

// CreatorStatsOf returns the counters for the supplied creator.
func (e *Engine) CreatorStatsOf(creator [20]byte) (*CreatorStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats, err := e.loadCreatorStats(creator)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

// Token returns the token registered under the supplied address.
func (e *Engine) Token(addr [20]byte) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	token, ok, err := e.state.TokenGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownToken
	}
	return token.Clone(), nil
}

// TokenBalance returns the holder's balance of the supplied token.
func (e *Engine) TokenBalance(token [20]byte, holder [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok, err := e.state.TokenGet(token); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrUnknownToken
	}
	balance, err := e.state.TokenBalanceGet(token, holder)
	if err != nil {
		return nil, err
	}
	return copyBig(balance), nil
}

// DeployedTokens returns every launched token in creation order.
func (e *Engine) DeployedTokens() ([]DeployedToken, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deployedTokensLocked()
}

// DeployedTokenAt returns the nth launched token, ordered by creation.
func (e *Engine) DeployedTokenAt(index int) (*DeployedToken, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	list, err := e.deployedTokensLocked()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return nil, errIndexOutOfRange
	}
	entry := list[index]
	return &entry, nil
}

// QuoteBuy previews the native cost of buying tokensOut without mutating
// state.
func (e *Engine) QuoteBuy(tokenAddr [20]byte, tokensOut *big.Int) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	token, schedule, err := e.loadTokenAndSchedule(tokenAddr)
	if err != nil {
		return nil, err
	}
	net, err := curve.BuyCost(token.Reserve, token.CurveSupply, tokensOut)
	if err != nil {
		return nil, translateCurveErr(err)
	}
	gross, err := fees.GrossForNet(net, schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeeConfig, err)
	}
	split := fees.Split(gross, schedule)
	return &Quote{
		Direction:   DirectionBuy,
		TokenAmount: copyBig(tokensOut),
		Gross:       gross,
		Net:         split.Net,
		PlatformFee: split.PlatformFee,
		CreatorFee:  split.CreatorFee,
	}, nil
}

// QuoteSell previews the native payout of selling tokensIn without mutating
// state.
func (e *Engine) QuoteSell(tokenAddr [20]byte, tokensIn *big.Int) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	token, schedule, err := e.loadTokenAndSchedule(tokenAddr)
	if err != nil {
		return nil, err
	}
	gross, err := curve.SellProceeds(token.Reserve, token.CurveSupply, tokensIn)
	if err != nil {
		return nil, translateCurveErr(err)
	}
	split := fees.Split(gross, schedule)
	return &Quote{
		Direction:   DirectionSell,
		TokenAmount: copyBig(tokensIn),
		Gross:       gross,
		Net:         split.Net,
		PlatformFee: split.PlatformFee,
		CreatorFee:  split.CreatorFee,
	}, nil
}

func (e *Engine) deployedTokensLocked() ([]DeployedToken, error) {
	index, err := e.state.TokenIndexList()
	if err != nil {
		return nil, err
	}
	list := make([]DeployedToken, 0, len(index))
	for _, addr := range index {
		token, ok, err := e.state.TokenGet(addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: indexed token %s missing", ErrUnknownToken, FormatAddress(addr))
		}
		list = append(list, DeployedToken{
			Address:   token.Address,
			Creator:   token.Creator,
			Name:      token.Name,
			Symbol:    token.Symbol,
			CreatedAt: token.CreatedAt,
		})
	}
	return list, nil
}

func (e *Engine) loadTokenAndSchedule(tokenAddr [20]byte) (*Token, fees.Schedule, error) {
	token, ok, err := e.state.TokenGet(tokenAddr)
	if err != nil {
		return nil, fees.Schedule{}, err
	}
	if !ok {
		return nil, fees.Schedule{}, ErrUnknownToken
	}
	schedule, err := e.loadSchedule()
	if err != nil {
		return nil, fees.Schedule{}, err
	}
	return token, schedule, nil
}

func (e *Engine) loadSchedule() (fees.Schedule, error) {
	schedule, ok, err := e.state.FeeScheduleGet()
	if err != nil {
		return fees.Schedule{}, err
	}
	if !ok || schedule == nil {
		return fees.Schedule{}, errFeesNotConfigured
	}
	return schedule.Clone(), nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return ensureAccount(account), nil
}

func (e *Engine) loadPlatformStats() (*PlatformStats, error) {
	stats, ok, err := e.state.PlatformStatsGet()
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		return newPlatformStats(), nil
	}
	return ensurePlatformStats(stats), nil
}

func (e *Engine) loadCreatorStats(creator [20]byte) (*CreatorStats, error) {
	stats, ok, err := e.state.CreatorStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		return newCreatorStats(), nil
	}
	if stats.FeesEarned == nil {
		stats.FeesEarned = big.NewInt(0)
	}
	return stats, nil
}

// move debits from and credits to by amount. Amounts of zero are a no-op;
// negative amounts are rejected so no failure upstream can turn a debit into
// a credit.
func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeTransfer
	}
	fromAccount, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromAccount.Balance = new(big.Int).Sub(fromAccount.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAccount); err != nil {
		return err
	}
	toAccount, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	toAccount.Balance = new(big.Int).Add(toAccount.Balance, amount)
	return e.state.PutAccount(to[:], toAccount)
}

func (e *Engine) routeFees(payer [20]byte, creator [20]byte, recipient [20]byte, split fees.Breakdown) error {
	if err := e.move(payer, recipient, split.PlatformFee); err != nil {
		return err
	}
	return e.move(payer, creator, split.CreatorFee)
}

// recordTradeStats applies the per-trade counter updates. reserveDelta is the
// amount added to (buy) or removed from (sell) the token reserve.
func (e *Engine) recordTradeStats(creator [20]byte, gross *big.Int, split fees.Breakdown, reserveDelta *big.Int, sell bool) error {
	stats, err := e.loadPlatformStats()
	if err != nil {
		return err
	}
	stats.CumulativeVolume = new(big.Int).Add(stats.CumulativeVolume, gross)
	feeTotal := new(big.Int).Add(split.PlatformFee, split.CreatorFee)
	stats.CumulativeFees = new(big.Int).Add(stats.CumulativeFees, feeTotal)
	if sell {
		stats.TotalReserves = new(big.Int).Sub(stats.TotalReserves, reserveDelta)
	} else {
		stats.TotalReserves = new(big.Int).Add(stats.TotalReserves, reserveDelta)
	}
	if stats.TotalReserves.Sign() < 0 {
		return errReserveInconsistent
	}
	if err := e.state.PlatformStatsPut(stats); err != nil {
		return err
	}
	creatorStats, err := e.loadCreatorStats(creator)
	if err != nil {
		return err
	}
	creatorStats.FeesEarned = new(big.Int).Add(creatorStats.FeesEarned, split.CreatorFee)
	return e.state.CreatorStatsPut(creator, creatorStats)
}

func ensureAccount(account *types.Account) *types.Account {
	if account == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account
}

func ensurePlatformStats(stats *PlatformStats) *PlatformStats {
	if stats.CumulativeVolume == nil {
		stats.CumulativeVolume = big.NewInt(0)
	}
	if stats.CumulativeFees == nil {
		stats.CumulativeFees = big.NewInt(0)
	}
	if stats.TotalReserves == nil {
		stats.TotalReserves = big.NewInt(0)
	}
	return stats
}

func checkConservation(gross *big.Int, split fees.Breakdown) error {
	sum := new(big.Int).Add(split.PlatformFee, split.CreatorFee)
	sum = sum.Add(sum, split.Net)
	if sum.Cmp(gross) != 0 {
		return errConservationBreach
	}
	return nil
}

func translateCurveErr(err error) error {
	switch {
	case errors.Is(err, curve.ErrInsufficientLiquidity):
		return fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
	case errors.Is(err, curve.ErrInsufficientInventory):
		return fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
	case errors.Is(err, curve.ErrAmountOverflow):
		return fmt.Errorf("%w: %v", ErrAmountOverflow, err)
	case errors.Is(err, curve.ErrInvalidAmount):
		return errInvalidAmount
	default:
		return err
	}
}

func fitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}
