package rtscribe

import (
	"slices"
	"strings"

	"github.com/codewandler/rtscribe/events"
)

// ContentPart is one piece of an item's content. Text is filled for text
// parts, Transcript for audio parts.
type ContentPart struct {
	Type       events.ContentType
	Text       string
	Transcript string
}

// Item is one turn of the conversation.
type Item struct {
	ID      string
	Type    string
	Role    events.Role
	Status  events.ItemStatus
	Content []ContentPart
}

func (it Item) clone() Item {
	it.Content = slices.Clone(it.Content)
	return it
}

// Part returns the first content part of the given type.
func (it Item) Part(typ events.ContentType) (ContentPart, bool) {
	for _, p := range it.Content {
		if p.Type == typ {
			return p, true
		}
	}
	return ContentPart{}, false
}

// Conversation is an immutable snapshot of the conversation store. Items
// are in first-seen order and unique by id.
type Conversation struct {
	version uint64
	items   []Item
}

func newConversation(version uint64, items []*Item) *Conversation {
	c := &Conversation{
		version: version,
		items:   make([]Item, len(items)),
	}
	for i, it := range items {
		c.items[i] = it.clone()
	}
	return c
}

// Version increases with every mutation of the store within a session.
func (c *Conversation) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns a copy of the items.
func (c *Conversation) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.clone()
	}
	return out
}

func (c *Conversation) Item(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	for _, it := range c.items {
		if it.ID == id {
			return it.clone(), true
		}
	}
	return Item{}, false
}

// Transcript returns the user-side transcript, see [Transcript].
func (c *Conversation) Transcript() string {
	return Transcript(c)
}

// Transcript joins, in store order, the trimmed input audio transcript of
// every user item with a single space. Items without an input audio part
// contribute an empty string.
func Transcript(c *Conversation) string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, it := range c.items {
		if it.Role != events.RoleUser {
			continue
		}
		p, _ := it.Part(events.ContentTypeInputAudio)
		parts = append(parts, strings.TrimSpace(p.Transcript))
	}
	return strings.Join(parts, " ")
}
