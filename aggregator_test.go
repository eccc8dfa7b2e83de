package rtscribe

import (
	"context"
	"errors"
	"testing"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAggregator_DeltasConcatenate(t *testing.T) {
	a := NewAggregator()

	for _, env := range []events.Envelope{
		itemCreated("ev_1", "item_1", events.RoleUser, ""),
		transcriptionDelta("ev_2", "item_1", "hel"),
		transcriptionDelta("ev_3", "item_1", "lo"),
	} {
		changed, err := a.Apply(env)
		require.NoError(t, err)
		require.True(t, changed)
	}

	conv := a.Conversation()
	require.Equal(t, 1, conv.Len())
	require.Equal(t, uint64(3), conv.Version())
	assert.Equal(t, "hello", conv.Transcript())

	it, ok := conv.Item("item_1")
	require.True(t, ok)
	assert.Equal(t, events.ItemStatusInProgress, it.Status)
	assert.Equal(t, events.RoleUser, it.Role)
}

func TestAggregator_CompletedReplacesDeltas(t *testing.T) {
	conv := Replay([]events.Envelope{
		itemCreated("ev_1", "item_1", events.RoleUser, ""),
		transcriptionDelta("ev_2", "item_1", "hel"),
		transcriptionCompleted("ev_3", "item_1", " hello there "),
	})
	assert.Equal(t, "hello there", conv.Transcript())
}

func TestAggregator_UnknownItemDropped(t *testing.T) {
	a := NewAggregator()
	_, err := a.Apply(itemCreated("ev_1", "item_1", events.RoleUser, ""))
	require.NoError(t, err)
	before := a.Conversation()

	changed, err := a.Apply(transcriptionDelta("ev_2", "item_404", "x"))
	require.False(t, changed)
	var unknown *UnknownItemError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "item_404", unknown.ItemID)

	assert.Same(t, before, a.Conversation())
	assert.Equal(t, Stats{Applied: 1, Dropped: 1}, a.Stats())
	assert.Len(t, a.Events(), 2)
}

func TestAggregator_DuplicateItemDropped(t *testing.T) {
	a := NewAggregator()
	_, err := a.Apply(itemCreated("ev_1", "item_1", events.RoleUser, ""))
	require.NoError(t, err)

	changed, err := a.Apply(itemCreated("ev_2", "item_1", events.RoleAssistant, ""))
	require.False(t, changed)
	var dup *DuplicateItemError
	require.ErrorAs(t, err, &dup)

	it, _ := a.Conversation().Item("item_1")
	assert.Equal(t, events.RoleUser, it.Role)
}

func TestAggregator_DeltaAfterCompletionDropped(t *testing.T) {
	a := NewAggregator()
	for _, env := range []events.Envelope{
		itemCreated("ev_1", "item_a", events.RoleAssistant, ""),
		textDelta("ev_2", "item_a", "Hi"),
		outputItemDone("ev_3", "item_a"),
	} {
		_, err := a.Apply(env)
		require.NoError(t, err)
	}

	changed, err := a.Apply(textDelta("ev_4", "item_a", " again"))
	require.False(t, changed)
	var completed *CompletedItemError
	require.ErrorAs(t, err, &completed)

	it, _ := a.Conversation().Item("item_a")
	assert.Equal(t, events.ItemStatusCompleted, it.Status)
	p, ok := it.Part(events.ContentTypeText)
	require.True(t, ok)
	assert.Equal(t, "Hi", p.Text)

	// a second completion is not a change
	changed, err = a.Apply(outputItemDone("ev_5", "item_a"))
	require.NoError(t, err)
	require.False(t, changed)
}

func TestAggregator_LateTranscriptionOnCompletedItem(t *testing.T) {
	conv := Replay([]events.Envelope{
		itemCreated("ev_1", "item_1", events.RoleUser, ""),
		serverEnv(map[string]any{
			"type":     events.TypeConversationItemDone,
			"event_id": "ev_2",
			"item":     map[string]any{"id": "item_1"},
		}),
		transcriptionCompleted("ev_3", "item_1", "late"),
	})
	assert.Equal(t, "late", conv.Transcript())
}

func TestAggregator_PreviousItemOrdering(t *testing.T) {
	conv := Replay([]events.Envelope{
		itemCreated("ev_1", "item_1", events.RoleUser, ""),
		itemCreated("ev_2", "item_3", events.RoleUser, "item_1"),
		itemCreated("ev_3", "item_2", events.RoleUser, "item_1"),
		itemCreated("ev_4", "item_4", events.RoleUser, "item_unknown"),
	})

	var ids []string
	for _, it := range conv.Items() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"item_1", "item_2", "item_3", "item_4"}, ids)
}

func TestAggregator_InterleavedRoles(t *testing.T) {
	conv := Replay([]events.Envelope{
		itemCreated("ev_1", "u1", events.RoleUser, ""),
		transcriptionCompleted("ev_2", "u1", "first"),
		itemCreated("ev_3", "a1", events.RoleAssistant, "u1"),
		textDelta("ev_4", "a1", "reply"),
		itemCreated("ev_5", "u2", events.RoleUser, "a1"),
		transcriptionCompleted("ev_6", "u2", "second"),
		itemCreated("ev_7", "u3", events.RoleUser, "u2"),
	})

	require.Equal(t, 4, conv.Len())
	// u3 has no transcript yet and contributes an empty string
	assert.Equal(t, "first second ", conv.Transcript())
}

func TestAggregator_SynthesizedID(t *testing.T) {
	a := NewAggregator()
	_, err := a.Apply(itemCreated("ev_9", "", events.RoleUser, ""))
	require.NoError(t, err)

	_, ok := a.Conversation().Item("local_ev_9")
	assert.True(t, ok)
}

func TestAggregator_IgnoredEvents(t *testing.T) {
	a := NewAggregator()

	changed, err := a.Apply(serverEnv(map[string]any{"type": events.TypeSessionCreated, "event_id": "ev_1"}))
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = a.Apply(serverEnv(map[string]any{
		"type":     events.TypeError,
		"event_id": "ev_2",
		"error":    map[string]any{"type": "invalid_request_error", "message": "nope"},
	}))
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = a.Apply(events.Fault(errors.New("boom")))
	require.NoError(t, err)
	require.False(t, changed)

	assert.Equal(t, Stats{Ignored: 3}, a.Stats())
	assert.Equal(t, uint64(0), a.Conversation().Version())
	assert.Len(t, a.Events(), 3)
}

func TestAggregator_Deterministic(t *testing.T) {
	feed := []events.Envelope{
		itemCreated("ev_1", "", events.RoleUser, ""),
		itemCreated("ev_2", "u2", events.RoleUser, ""),
		transcriptionDelta("ev_3", "u2", "a"),
		transcriptionDelta("ev_4", "u2", "b"),
		transcriptionDelta("ev_5", "missing", "c"),
		itemCreated("ev_6", "u2", events.RoleUser, ""),
	}
	assert.Equal(t, Replay(feed), Replay(feed))
}

func TestAggregator_SnapshotsAreImmutable(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Apply(itemCreated("ev_1", "u1", events.RoleUser, ""))
	_, _ = a.Apply(transcriptionDelta("ev_2", "u1", "one"))
	snap := a.Conversation()

	_, _ = a.Apply(transcriptionDelta("ev_3", "u1", " two"))
	assert.Equal(t, "one", snap.Transcript())
	assert.Equal(t, "one two", a.Conversation().Transcript())

	items := snap.Items()
	items[0].Content[0].Transcript = "mutated"
	assert.Equal(t, "one", snap.Transcript())
}

func TestAggregator_Reset(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Apply(itemCreated("ev_1", "u1", events.RoleUser, ""))
	a.Reset()

	assert.Equal(t, 0, a.Conversation().Len())
	assert.Empty(t, a.Events())
	assert.Equal(t, Stats{}, a.Stats())
}

func TestAggregator_DropMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.New(mp)
	require.NoError(t, err)

	a := NewAggregator(WithAggregatorMetrics(m))
	_, _ = a.Apply(transcriptionDelta("ev_1", "nope", "x"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "rtscribe.aggregator.dropped" {
				continue
			}
			for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), total)
}

func TestAggregator_InvalidFrameIgnored(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Apply(itemCreated("ev_1", "u1", events.RoleUser, ""))
	before := a.Conversation()

	changed, err := a.Apply(events.Invalid([]byte("not json"), errors.New("parse failed")))
	require.NoError(t, err)
	require.False(t, changed)

	assert.Same(t, before, a.Conversation())
	assert.Equal(t, Stats{Applied: 1, Ignored: 1}, a.Stats())
	log := a.Events()
	require.Len(t, log, 2)
	assert.Equal(t, events.TypeInvalid, log[1].Type())
}
