package metrics

import (
	"thousandx/core/events"
	"thousandx/core/types"
	"thousandx/native/market"
)

// MarketEmitter feeds market events into the prometheus counters. It is meant
// to be fanned in next to the primary emitter so metrics stay a side channel.
type MarketEmitter struct {
	metrics *MarketMetrics
}

// NewMarketEmitter returns an emitter backed by the shared market registry.
func NewMarketEmitter() *MarketEmitter {
	return &MarketEmitter{metrics: Market()}
}

// Emit implements events.Emitter.
func (e *MarketEmitter) Emit(evt events.Event) {
	if e == nil || e.metrics == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case market.EventTypeTokenCreated:
		e.metrics.ObserveTokenCreated()
	case market.EventTypeTrade:
		direction := ""
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			if payload := carrier.Event(); payload != nil {
				direction = payload.Attributes["direction"]
			}
		}
		e.metrics.ObserveTrade(direction)
	case market.EventTypeFeesUpdated:
		e.metrics.ObserveFeeUpdate()
	case market.EventTypeEmergencyWithdraw:
		e.metrics.ObserveEmergencyWithdraw()
	}
}
