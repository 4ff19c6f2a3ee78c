package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	var got []*Event
	unsubscribe := bus.Subscribe(TradeAccepted, func(e *Event) { got = append(got, e) })
	assert.Equal(t, 1, bus.SubscriberCount(TradeAccepted))

	bus.Emit(TradeAccepted, "ingestion", map[string]interface{}{"ticker": "NVDA"})
	bus.Emit(CycleStarted, "cycle", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "NVDA", got[0].Data["ticker"])
	assert.Equal(t, "ingestion", got[0].Module)

	unsubscribe()
	assert.Zero(t, bus.SubscriberCount(TradeAccepted))
	bus.Emit(TradeAccepted, "ingestion", nil)
	assert.Len(t, got, 1)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	seen := map[EventType]int{}
	cancel := bus.SubscribeAll(AllEventTypes, func(e *Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Type]++
	})

	for _, et := range AllEventTypes {
		bus.Emit(et, "test", nil)
	}
	assert.Len(t, seen, len(AllEventTypes))

	cancel()
	for _, et := range AllEventTypes {
		assert.Zero(t, bus.SubscriberCount(et))
	}
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus()
	mgr := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(RecommendationIssued, func(e *Event) { got = e })

	mgr.EmitTyped("cycle", &RecommendationIssuedData{Ticker: "NVDA", Action: "BUY", Amount: 375, Confidence: 0.9})

	require.NotNil(t, got)
	assert.Equal(t, RecommendationIssued, got.Type)
	assert.Equal(t, "NVDA", got.Data["ticker"])
	assert.Equal(t, 0.9, got.Data["confidence"])
	assert.Same(t, bus, mgr.Bus())
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	mgr := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })

	mgr.EmitError("cycle", errors.New("insert failed"), map[string]interface{}{"ticker": "MSFT"})

	require.NotNil(t, got)
	assert.Equal(t, "insert failed", got.Data["error"])
	assert.Equal(t, "MSFT", got.Data["context"].(map[string]interface{})["ticker"])
}
