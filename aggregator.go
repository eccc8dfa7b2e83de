package rtscribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/observe"
)

type textField int

const (
	fieldTranscript textField = iota
	fieldText
)

type contentTarget struct {
	part  events.ContentType
	field textField
}

var deltaTargets = map[string]contentTarget{
	events.TypeInputAudioTranscriptionDelta: {events.ContentTypeInputAudio, fieldTranscript},
	events.TypeResponseAudioTranscriptDelta: {events.ContentTypeAudio, fieldTranscript},
	events.TypeResponseTextDelta:            {events.ContentTypeText, fieldText},
}

var doneTargets = map[string]contentTarget{
	events.TypeInputAudioTranscriptionCompleted: {events.ContentTypeInputAudio, fieldTranscript},
	events.TypeResponseAudioTranscriptDone:      {events.ContentTypeAudio, fieldTranscript},
	events.TypeResponseTextDone:                 {events.ContentTypeText, fieldText},
}

// Stats counts what the aggregator did with the events it was given.
type Stats struct {
	// Applied events changed the store.
	Applied int
	// Ignored events were only logged.
	Ignored int
	// Dropped events were rejected as anomalies.
	Dropped int
}

// Aggregator folds inbound events into the conversation store and keeps the
// raw event log. Apply must be called from a single goroutine at a time;
// the read accessors are safe for concurrent use.
type Aggregator struct {
	logger  *slog.Logger
	metrics *observe.Metrics

	mu      sync.Mutex
	items   []*Item
	byID    map[string]*Item
	log     []events.Envelope
	seq     uint64
	version uint64
	stats   Stats

	snapshot atomic.Pointer[Conversation]
}

type AggregatorOption func(*Aggregator)

func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = logger }
}

func WithAggregatorMetrics(m *observe.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a
}

// Reset empties the store, the raw log and the counters.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = nil
	a.byID = make(map[string]*Item)
	a.log = nil
	a.seq = 0
	a.version = 0
	a.stats = Stats{}
	a.snapshot.Store(newConversation(0, nil))
}

// Conversation returns the latest snapshot.
func (a *Aggregator) Conversation() *Conversation {
	return a.snapshot.Load()
}

// Events returns a copy of the raw event log.
func (a *Aggregator) Events() []events.Envelope {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.log)
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Apply records env in the raw log and folds it into the store. It reports
// whether the store changed. A non-nil error describes an anomaly: the event
// has been logged and dropped, and the store is unchanged.
func (a *Aggregator) Apply(env events.Envelope) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	a.log = append(a.log, env)
	if a.metrics != nil {
		a.metrics.RecordEvent(context.Background(), env.Type())
	}

	switch {
	case env.Invalid != nil:
		a.logger.Warn("unreadable server frame",
			slog.Int("len", len(env.Invalid.Data)),
			slog.Any("err", env.Invalid.Err),
		)
		a.stats.Ignored++
		return false, nil
	case env.Server == nil:
		a.logger.Warn("transport fault", slog.Any("err", env.Fault))
		a.stats.Ignored++
		return false, nil
	}

	evt := env.Server
	if strings.Contains(evt.Type, "input_audio") || strings.Contains(evt.Type, "response") {
		a.logger.Info("server event", slog.String("type", evt.Type))
	} else {
		a.logger.Debug("server event", slog.String("type", evt.Type))
	}

	changed, err := a.fold(evt)
	switch {
	case err != nil:
		a.drop(evt, err)
	case changed:
		a.stats.Applied++
		a.version++
		a.snapshot.Store(newConversation(a.version, a.items))
	default:
		a.stats.Ignored++
	}
	return changed, err
}

func (a *Aggregator) drop(evt *events.ServerEvent, err error) {
	a.stats.Dropped++

	reason := "invalid_event"
	var (
		dup       *DuplicateItemError
		unknown   *UnknownItemError
		completed *CompletedItemError
	)
	switch {
	case errors.As(err, &dup):
		reason = "duplicate_item"
	case errors.As(err, &unknown):
		reason = "unknown_item"
	case errors.As(err, &completed):
		reason = "completed_item"
		a.logger.Warn("dropping delta for completed item", slog.String("type", evt.Type), slog.Any("err", err))
	}
	if reason != "completed_item" {
		a.logger.Error("dropping event", slog.String("type", evt.Type), slog.String("reason", reason), slog.Any("err", err))
	}
	if a.metrics != nil {
		a.metrics.RecordDrop(context.Background(), reason)
	}
}

func (a *Aggregator) fold(evt *events.ServerEvent) (bool, error) {
	switch evt.Type {
	case events.TypeConversationItemCreated, events.TypeConversationItemAdded:
		x, err := events.Parse[events.ConversationItemCreatedEvent](evt.Payload)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", evt.Type, err)
		}
		return a.createItem(evt, x)

	case events.TypeConversationItemDone, events.TypeResponseOutputItemDone:
		x, err := events.Parse[events.ConversationItemDoneEvent](evt.Payload)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", evt.Type, err)
		}
		return a.completeItem(evt.Type, x.Item.ID)

	case events.TypeError:
		x, err := events.Parse[events.ErrorEvent](evt.Payload)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", evt.Type, err)
		}
		a.logger.Warn("server error event", slog.Any("err", x))
		return false, nil
	}

	if target, ok := deltaTargets[evt.Type]; ok {
		x, err := events.Parse[events.ContentDeltaEvent](evt.Payload)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", evt.Type, err)
		}
		return a.appendDelta(evt.Type, target, x)
	}

	if target, ok := doneTargets[evt.Type]; ok {
		x, err := events.Parse[events.ContentDoneEvent](evt.Payload)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", evt.Type, err)
		}
		return a.finishContent(evt.Type, target, x)
	}

	return false, nil
}

func (a *Aggregator) createItem(evt *events.ServerEvent, x *events.ConversationItemCreatedEvent) (bool, error) {
	id := x.Item.ID
	if id == "" {
		if evt.EventID != "" {
			id = "local_" + evt.EventID
		} else {
			id = fmt.Sprintf("local_%d", a.seq)
		}
	}
	if _, ok := a.byID[id]; ok {
		return false, &DuplicateItemError{ItemID: id}
	}

	it := &Item{
		ID:     id,
		Type:   x.Item.Type,
		Role:   x.Item.Role,
		Status: events.ItemStatusInProgress,
	}
	for _, c := range x.Item.Content {
		p := ContentPart{Type: c.Type}
		if c.Text != nil {
			p.Text = *c.Text
		}
		if c.Transcript != nil {
			p.Transcript = *c.Transcript
		}
		it.Content = append(it.Content, p)
	}

	pos := len(a.items)
	if prev := x.PreviousItemID; prev != nil && *prev != "" {
		if i := a.indexOf(*prev); i >= 0 {
			pos = i + 1
		} else {
			a.logger.Debug("previous item unknown, appending", slog.String("item_id", id), slog.String("previous_item_id", *prev))
		}
	}

	a.items = slices.Insert(a.items, pos, it)
	a.byID[id] = it
	return true, nil
}

func (a *Aggregator) indexOf(id string) int {
	for i, it := range a.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (a *Aggregator) completeItem(eventType, id string) (bool, error) {
	it, ok := a.byID[id]
	if !ok {
		return false, &UnknownItemError{ItemID: id, EventType: eventType}
	}
	if it.Status == events.ItemStatusCompleted {
		return false, nil
	}
	it.Status = events.ItemStatusCompleted
	return true, nil
}

func (a *Aggregator) appendDelta(eventType string, target contentTarget, x *events.ContentDeltaEvent) (bool, error) {
	it, ok := a.byID[x.ItemID]
	if !ok {
		return false, &UnknownItemError{ItemID: x.ItemID, EventType: eventType}
	}
	if it.Status == events.ItemStatusCompleted {
		return false, &CompletedItemError{ItemID: x.ItemID, EventType: eventType}
	}
	if x.Delta == "" {
		return false, nil
	}

	p := it.part(target.part, x.ContentIndex)
	switch target.field {
	case fieldText:
		p.Text += x.Delta
	default:
		p.Transcript += x.Delta
	}
	return true, nil
}

func (a *Aggregator) finishContent(eventType string, target contentTarget, x *events.ContentDoneEvent) (bool, error) {
	it, ok := a.byID[x.ItemID]
	if !ok {
		return false, &UnknownItemError{ItemID: x.ItemID, EventType: eventType}
	}

	p := it.part(target.part, x.ContentIndex)
	switch target.field {
	case fieldText:
		p.Text = x.Text
	default:
		p.Transcript = x.Transcript
	}
	return true, nil
}

// part returns the content part addressed by index if it has the right
// type, else the first part of that type, else a new one.
func (it *Item) part(typ events.ContentType, index *int) *ContentPart {
	if index != nil && *index >= 0 && *index < len(it.Content) && it.Content[*index].Type == typ {
		return &it.Content[*index]
	}
	for i := range it.Content {
		if it.Content[i].Type == typ {
			return &it.Content[i]
		}
	}
	it.Content = append(it.Content, ContentPart{Type: typ})
	return &it.Content[len(it.Content)-1]
}

// Replay folds envs into a fresh aggregator and returns the final snapshot.
func Replay(envs []events.Envelope, opts ...AggregatorOption) *Conversation {
	a := NewAggregator(opts...)
	for _, env := range envs {
		_, _ = a.Apply(env)
	}
	return a.Conversation()
}
