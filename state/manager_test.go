package state

import (
	"math/big"
	"testing"

	"thousandx/core/types"
	"thousandx/native/fees"
	"thousandx/native/market"
	"thousandx/storage"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestTokenRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	token := &market.Token{
		Address:     testAddr(0xAA),
		Creator:     testAddr(0x01),
		Name:        "TestMeme",
		Symbol:      "TMEME",
		TotalSupply: big.NewInt(1_000_000),
		Reserve:     big.NewInt(42),
		CurveSupply: big.NewInt(999_958),
		CreatedAt:   1_700_000_000,
	}
	if err := manager.TokenPut(token); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	loaded, ok, err := manager.TokenGet(token.Address)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if loaded.Name != token.Name || loaded.Symbol != token.Symbol {
		t.Fatalf("metadata mismatch: %+v", loaded)
	}
	if loaded.Creator != token.Creator || loaded.CreatedAt != token.CreatedAt {
		t.Fatalf("identity mismatch: %+v", loaded)
	}
	if loaded.Reserve.Cmp(token.Reserve) != 0 || loaded.CurveSupply.Cmp(token.CurveSupply) != 0 {
		t.Fatalf("curve state mismatch: %+v", loaded)
	}

	if _, ok, err := manager.TokenGet(testAddr(0xBB)); err != nil || ok {
		t.Fatalf("missing token should report absent: ok=%v err=%v", ok, err)
	}
}

func TestTokenIndexPreservesOrder(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addrs := [][20]byte{testAddr(1), testAddr(2), testAddr(3)}
	for _, addr := range addrs {
		if err := manager.TokenIndexAppend(addr); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	index, err := manager.TokenIndexList()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(index) != len(addrs) {
		t.Fatalf("index length %d want %d", len(index), len(addrs))
	}
	for i, addr := range addrs {
		if index[i] != addr {
			t.Fatalf("index order broken at %d", i)
		}
	}
}

func TestBalanceDefaultsToZero(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	balance, err := manager.TokenBalanceGet(testAddr(1), testAddr(2))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("missing balance not zero: %s", balance)
	}
	if err := manager.TokenBalancePut(testAddr(1), testAddr(2), big.NewInt(777)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	balance, err = manager.TokenBalanceGet(testAddr(1), testAddr(2))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if balance.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("balance %s want 777", balance)
	}
	// A different holder of the same token is untouched.
	other, err := manager.TokenBalanceGet(testAddr(1), testAddr(3))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if other.Sign() != 0 {
		t.Fatalf("balance bled across holders: %s", other)
	}
}

func TestScheduleAndStatsRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	if _, ok, err := manager.FeeScheduleGet(); err != nil || ok {
		t.Fatalf("missing schedule should report absent: ok=%v err=%v", ok, err)
	}
	schedule := &fees.Schedule{
		CreateFee:     big.NewInt(1_000),
		TradeFeeBps:   100,
		CreatorFeeBps: 50,
		Recipient:     testAddr(0x02),
	}
	if err := manager.FeeSchedulePut(schedule); err != nil {
		t.Fatalf("put schedule failed: %v", err)
	}
	loaded, ok, err := manager.FeeScheduleGet()
	if err != nil || !ok {
		t.Fatalf("get schedule failed: ok=%v err=%v", ok, err)
	}
	if loaded.CreateFee.Cmp(schedule.CreateFee) != 0 || loaded.TradeFeeBps != 100 || loaded.CreatorFeeBps != 50 {
		t.Fatalf("schedule mismatch: %+v", loaded)
	}
	if loaded.Recipient != schedule.Recipient {
		t.Fatalf("recipient mismatch")
	}

	stats := &market.PlatformStats{
		TotalTokensCreated: 3,
		CumulativeVolume:   big.NewInt(12_345),
		CumulativeFees:     big.NewInt(67),
		TotalReserves:      big.NewInt(8_900),
	}
	if err := manager.PlatformStatsPut(stats); err != nil {
		t.Fatalf("put stats failed: %v", err)
	}
	loadedStats, ok, err := manager.PlatformStatsGet()
	if err != nil || !ok {
		t.Fatalf("get stats failed: ok=%v err=%v", ok, err)
	}
	if loadedStats.TotalTokensCreated != 3 || loadedStats.CumulativeVolume.Cmp(stats.CumulativeVolume) != 0 {
		t.Fatalf("stats mismatch: %+v", loadedStats)
	}
	if loadedStats.TotalReserves.Cmp(stats.TotalReserves) != 0 {
		t.Fatalf("reserves mismatch: %+v", loadedStats)
	}

	creator := testAddr(0x10)
	if err := manager.CreatorStatsPut(creator, &market.CreatorStats{TokensCreated: 2, FeesEarned: big.NewInt(55)}); err != nil {
		t.Fatalf("put creator stats failed: %v", err)
	}
	creatorStats, ok, err := manager.CreatorStatsGet(creator)
	if err != nil || !ok {
		t.Fatalf("get creator stats failed: ok=%v err=%v", ok, err)
	}
	if creatorStats.TokensCreated != 2 || creatorStats.FeesEarned.Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("creator stats mismatch: %+v", creatorStats)
	}
}

func TestCreationNoncePersists(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	nonce, err := manager.CreationNonce()
	if err != nil || nonce != 0 {
		t.Fatalf("fresh nonce: got %d err=%v", nonce, err)
	}
	if err := manager.SetCreationNonce(7); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	nonce, err = manager.CreationNonce()
	if err != nil || nonce != 7 {
		t.Fatalf("nonce %d err=%v want 7", nonce, err)
	}
}

// The engine runs unchanged over the persistent manager: a full launch and
// trade sequence settles and survives a reopen of the same database.
func TestEngineOverPersistentState(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	engine := market.NewEngine()
	engine.SetState(manager)
	owner := testAddr(0x01)
	vault := testAddr(0x03)
	engine.SetOwner(owner)
	engine.SetVault(vault)
	if err := engine.EnsureSchedule(fees.Schedule{
		CreateFee:     big.NewInt(1_000),
		TradeFeeBps:   100,
		CreatorFeeBps: 50,
		Recipient:     testAddr(0x02),
	}); err != nil {
		t.Fatalf("schedule bootstrap failed: %v", err)
	}

	creator := testAddr(0x10)
	trader := testAddr(0x20)
	fund := new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)
	if err := manager.PutAccount(creator[:], accountWith(fund)); err != nil {
		t.Fatalf("fund creator failed: %v", err)
	}
	if err := manager.PutAccount(trader[:], accountWith(fund)); err != nil {
		t.Fatalf("fund trader failed: %v", err)
	}

	token, err := engine.CreateToken(creator, "TestMeme", "TMEME", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("create token failed: %v", err)
	}
	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	if _, err := engine.Buy(trader, token.Address, amount, nil, fund); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	// A fresh manager over the same database sees settled state.
	reopened := market.NewEngine()
	reopened.SetState(NewManager(db))
	reopened.SetOwner(owner)
	reopened.SetVault(vault)

	balance, err := reopened.TokenBalance(token.Address, trader)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if balance.Cmp(amount) != 0 {
		t.Fatalf("persisted balance %s want %s", balance, amount)
	}
	summary, err := reopened.PlatformSummary()
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalTokensCreated != 1 {
		t.Fatalf("persisted stats lost: %+v", summary)
	}
	if _, err := reopened.Sell(trader, token.Address, amount, nil); err != nil {
		t.Fatalf("sell over reopened state failed: %v", err)
	}
}

func accountWith(balance *big.Int) *types.Account {
	return &types.Account{Balance: new(big.Int).Set(balance)}
}
