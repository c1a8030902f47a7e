package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"thousandx/core/types"
	"thousandx/native/fees"
	"thousandx/native/market"
	"thousandx/storage"
)

const (
	tokenPrefix        = "market/token/"
	tokenIndexKey      = "market/token-index"
	balancePrefix      = "market/balance/"
	accountPrefix      = "market/account/"
	platformStatsKey   = "market/stats/platform"
	creatorStatsPrefix = "market/stats/creator/"
	feeScheduleKey     = "market/fees"
	creationNonceKey   = "market/nonce"
)

var errCorruptRecord = errors.New("state: corrupt record")

// Manager persists market state in a key-value database. Stored structs are
// RLP encoded with big integers carried as decimal strings so records stay
// readable in raw dumps and stable across word sizes.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database in a market state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedToken struct {
	Address     []byte
	Creator     []byte
	Name        string
	Symbol      string
	TotalSupply string
	Reserve     string
	CurveSupply string
	CreatedAt   uint64
}

type storedAccount struct {
	Nonce   uint64
	Balance string
}

type storedSchedule struct {
	CreateFee     string
	TradeFeeBps   uint32
	CreatorFeeBps uint32
	Recipient     []byte
}

type storedPlatformStats struct {
	TotalTokensCreated uint64
	CumulativeVolume   string
	CumulativeFees     string
	TotalReserves      string
}

type storedCreatorStats struct {
	TokensCreated uint64
	FeesEarned    string
}

func encodeBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad integer %q", errCorruptRecord, s)
	}
	return v, nil
}

func decodeAddr(raw []byte) ([20]byte, error) {
	var out [20]byte
	if len(raw) != len(out) {
		return out, fmt.Errorf("%w: bad address length %d", errCorruptRecord, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	return true, nil
}

func (m *Manager) store(key []byte, in interface{}) error {
	raw, err := rlp.EncodeToBytes(in)
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

func tokenKey(addr [20]byte) []byte {
	return append([]byte(tokenPrefix), addr[:]...)
}

func balanceKey(token, holder [20]byte) []byte {
	key := append([]byte(balancePrefix), token[:]...)
	key = append(key, '/')
	return append(key, holder[:]...)
}

func accountKey(addr []byte) []byte {
	return append([]byte(accountPrefix), addr...)
}

func creatorStatsKey(creator [20]byte) []byte {
	return append([]byte(creatorStatsPrefix), creator[:]...)
}

// TokenGet loads a token record by address.
func (m *Manager) TokenGet(addr [20]byte) (*market.Token, bool, error) {
	var stored storedToken
	ok, err := m.load(tokenKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	token, err := stored.decode()
	if err != nil {
		return nil, false, err
	}
	return token, true, nil
}

// TokenPut persists a token record.
func (m *Manager) TokenPut(token *market.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", errCorruptRecord)
	}
	stored := storedToken{
		Address:     token.Address[:],
		Creator:     token.Creator[:],
		Name:        token.Name,
		Symbol:      token.Symbol,
		TotalSupply: encodeBig(token.TotalSupply),
		Reserve:     encodeBig(token.Reserve),
		CurveSupply: encodeBig(token.CurveSupply),
		CreatedAt:   uint64(token.CreatedAt),
	}
	return m.store(tokenKey(token.Address), &stored)
}

func (s *storedToken) decode() (*market.Token, error) {
	address, err := decodeAddr(s.Address)
	if err != nil {
		return nil, err
	}
	creator, err := decodeAddr(s.Creator)
	if err != nil {
		return nil, err
	}
	totalSupply, err := decodeBig(s.TotalSupply)
	if err != nil {
		return nil, err
	}
	reserve, err := decodeBig(s.Reserve)
	if err != nil {
		return nil, err
	}
	curveSupply, err := decodeBig(s.CurveSupply)
	if err != nil {
		return nil, err
	}
	return &market.Token{
		Address:     address,
		Creator:     creator,
		Name:        s.Name,
		Symbol:      s.Symbol,
		TotalSupply: totalSupply,
		Reserve:     reserve,
		CurveSupply: curveSupply,
		CreatedAt:   int64(s.CreatedAt),
	}, nil
}

// TokenIndexAppend adds a token address to the ordered launch index.
func (m *Manager) TokenIndexAppend(addr [20]byte) error {
	index, err := m.TokenIndexList()
	if err != nil {
		return err
	}
	raw := make([][]byte, 0, len(index)+1)
	for _, entry := range index {
		raw = append(raw, append([]byte{}, entry[:]...))
	}
	raw = append(raw, append([]byte{}, addr[:]...))
	return m.store([]byte(tokenIndexKey), raw)
}

// TokenIndexList returns all launched token addresses in creation order.
func (m *Manager) TokenIndexList() ([][20]byte, error) {
	var raw [][]byte
	ok, err := m.load([]byte(tokenIndexKey), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		addr, err := decodeAddr(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// TokenBalanceGet returns a holder's balance of a token, zero when absent.
func (m *Manager) TokenBalanceGet(token, holder [20]byte) (*big.Int, error) {
	raw, err := m.db.Get(balanceKey(token, holder))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	var encoded string
	if err := rlp.DecodeBytes(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	return decodeBig(encoded)
}

// TokenBalancePut persists a holder's balance of a token.
func (m *Manager) TokenBalancePut(token, holder [20]byte, balance *big.Int) error {
	return m.store(balanceKey(token, holder), encodeBig(balance))
}

// GetAccount loads a native account, nil when absent.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.load(accountKey(addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	balance, err := decodeBig(stored.Balance)
	if err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists a native account.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("%w: nil account", errCorruptRecord)
	}
	stored := storedAccount{
		Nonce:   account.Nonce,
		Balance: encodeBig(account.Balance),
	}
	return m.store(accountKey(addr), &stored)
}

// PlatformStatsGet loads the platform counters.
func (m *Manager) PlatformStatsGet() (*market.PlatformStats, bool, error) {
	var stored storedPlatformStats
	ok, err := m.load([]byte(platformStatsKey), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	volume, err := decodeBig(stored.CumulativeVolume)
	if err != nil {
		return nil, false, err
	}
	feesTotal, err := decodeBig(stored.CumulativeFees)
	if err != nil {
		return nil, false, err
	}
	reserves, err := decodeBig(stored.TotalReserves)
	if err != nil {
		return nil, false, err
	}
	return &market.PlatformStats{
		TotalTokensCreated: stored.TotalTokensCreated,
		CumulativeVolume:   volume,
		CumulativeFees:     feesTotal,
		TotalReserves:      reserves,
	}, true, nil
}

// PlatformStatsPut persists the platform counters.
func (m *Manager) PlatformStatsPut(stats *market.PlatformStats) error {
	if stats == nil {
		return fmt.Errorf("%w: nil stats", errCorruptRecord)
	}
	stored := storedPlatformStats{
		TotalTokensCreated: stats.TotalTokensCreated,
		CumulativeVolume:   encodeBig(stats.CumulativeVolume),
		CumulativeFees:     encodeBig(stats.CumulativeFees),
		TotalReserves:      encodeBig(stats.TotalReserves),
	}
	return m.store([]byte(platformStatsKey), &stored)
}

// CreatorStatsGet loads per-creator counters.
func (m *Manager) CreatorStatsGet(creator [20]byte) (*market.CreatorStats, bool, error) {
	var stored storedCreatorStats
	ok, err := m.load(creatorStatsKey(creator), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	earned, err := decodeBig(stored.FeesEarned)
	if err != nil {
		return nil, false, err
	}
	return &market.CreatorStats{TokensCreated: stored.TokensCreated, FeesEarned: earned}, true, nil
}

// CreatorStatsPut persists per-creator counters.
func (m *Manager) CreatorStatsPut(creator [20]byte, stats *market.CreatorStats) error {
	if stats == nil {
		return fmt.Errorf("%w: nil stats", errCorruptRecord)
	}
	stored := storedCreatorStats{
		TokensCreated: stats.TokensCreated,
		FeesEarned:    encodeBig(stats.FeesEarned),
	}
	return m.store(creatorStatsKey(creator), &stored)
}

// FeeScheduleGet loads the persisted fee schedule.
func (m *Manager) FeeScheduleGet() (*fees.Schedule, bool, error) {
	var stored storedSchedule
	ok, err := m.load([]byte(feeScheduleKey), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	createFee, err := decodeBig(stored.CreateFee)
	if err != nil {
		return nil, false, err
	}
	recipient, err := decodeAddr(stored.Recipient)
	if err != nil {
		return nil, false, err
	}
	return &fees.Schedule{
		CreateFee:     createFee,
		TradeFeeBps:   stored.TradeFeeBps,
		CreatorFeeBps: stored.CreatorFeeBps,
		Recipient:     recipient,
	}, true, nil
}

// FeeSchedulePut persists the fee schedule.
func (m *Manager) FeeSchedulePut(schedule *fees.Schedule) error {
	if schedule == nil {
		return fmt.Errorf("%w: nil schedule", errCorruptRecord)
	}
	stored := storedSchedule{
		CreateFee:     encodeBig(schedule.CreateFee),
		TradeFeeBps:   schedule.TradeFeeBps,
		CreatorFeeBps: schedule.CreatorFeeBps,
		Recipient:     schedule.Recipient[:],
	}
	return m.store([]byte(feeScheduleKey), &stored)
}

// CreationNonce returns the global token creation counter.
func (m *Manager) CreationNonce() (uint64, error) {
	var nonce uint64
	ok, err := m.load([]byte(creationNonceKey), &nonce)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return nonce, nil
}

// SetCreationNonce persists the global token creation counter.
func (m *Manager) SetCreationNonce(nonce uint64) error {
	return m.store([]byte(creationNonceKey), nonce)
}
