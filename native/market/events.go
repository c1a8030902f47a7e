package market

import (
	"strconv"

	"thousandx/core/events"
	"thousandx/core/types"
)

const (
	// EventTypeTokenCreated is emitted when the factory launches a new token.
	EventTypeTokenCreated = "market.token.created"
	// EventTypeTrade is emitted once per settled buy or sell.
	EventTypeTrade = "market.trade"
	// EventTypeFeesUpdated is emitted when the owner replaces the fee schedule.
	EventTypeFeesUpdated = "market.fees.updated"
	// EventTypeEmergencyWithdraw is emitted when unallocated value is swept.
	EventTypeEmergencyWithdraw = "market.emergency.withdraw"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// TokenCreatedEvent returns the structured payload for a token launch.
func TokenCreatedEvent(token *Token) *types.Event {
	return &types.Event{
		Type: EventTypeTokenCreated,
		Attributes: map[string]string{
			"token":   FormatAddress(token.Address),
			"creator": FormatAddress(token.Creator),
			"name":    token.Name,
			"symbol":  token.Symbol,
			"supply":  token.TotalSupply.String(),
		},
	}
}

// TradeEvent returns the structured payload for a settled trade, carrying the
// full fee breakdown for external auditability.
func TradeEvent(record *TradeRecord) *types.Event {
	return &types.Event{
		Type: EventTypeTrade,
		Attributes: map[string]string{
			"id":          record.ID,
			"token":       FormatAddress(record.Token),
			"trader":      FormatAddress(record.Trader),
			"direction":   string(record.Direction),
			"tokenAmount": record.TokenAmount.String(),
			"gross":       record.Gross.String(),
			"net":         record.Net.String(),
			"platformFee": record.PlatformFee.String(),
			"creatorFee":  record.CreatorFee.String(),
			"reserve":     record.ReserveAfter.String(),
		},
	}
}

// FeesUpdatedEvent returns the structured payload for a fee schedule change.
func FeesUpdatedEvent(createFee string, tradeBps, creatorBps uint32) *types.Event {
	return &types.Event{
		Type: EventTypeFeesUpdated,
		Attributes: map[string]string{
			"createFee":     createFee,
			"tradeFeeBps":   strconv.FormatUint(uint64(tradeBps), 10),
			"creatorFeeBps": strconv.FormatUint(uint64(creatorBps), 10),
		},
	}
}

// EmergencyWithdrawEvent returns the structured payload for a sweep of
// unallocated native value.
func EmergencyWithdrawEvent(owner [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeEmergencyWithdraw,
		Attributes: map[string]string{
			"owner":  FormatAddress(owner),
			"amount": amount,
		},
	}
}
