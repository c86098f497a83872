package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	first, cancelFirst := bus.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	bus.Publish(&PodChangedData{PodIDs: []string{"pod-1"}})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, PodChanged, event.Type)
			data, ok := event.Data.(*PodChangedData)
			require.True(t, ok)
			assert.Equal(t, []string{"pod-1"}, data.PodIDs)
		case <-time.After(time.Second):
			t.Fatal("expected event was not delivered")
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// Second publish overflows the buffer and is dropped
	bus.Publish(&TransactionsChangedData{Count: 1})
	bus.Publish(&TransactionsChangedData{Count: 2})

	event := <-ch
	data := event.Data.(*TransactionsChangedData)
	assert.Equal(t, 1, data.Count)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, cancel := bus.Subscribe(4)
	cancel()

	// Publishing after cancel must not panic on the closed channel
	bus.Publish(&IncomeChangedData{SourceID: "salary", ChangePercentage: 12})

	_, open := <-ch
	assert.False(t, open)
}

func TestCancelIsIdempotent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	_, cancel := bus.Subscribe(1)

	cancel()
	assert.NotPanics(t, cancel)
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		data EventData
		want EventType
	}{
		{&TransactionsChangedData{}, TransactionsChanged},
		{&IncomeChangedData{}, IncomeChanged},
		{&PodChangedData{}, PodChanged},
		{&AnalysisRefreshedData{}, AnalysisRefreshed},
		{&SuggestionCreatedData{}, SuggestionCreated},
		{&RuleTriggeredData{}, RuleTriggered},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.data.EventType())
	}
}
