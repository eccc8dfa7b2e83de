package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/codewandler/rtscribe"
	"github.com/codewandler/rtscribe/events"
)

// transcriptPrinter writes each user utterance once its transcription has
// completed, in conversation order.
type transcriptPrinter struct {
	w            io.Writer
	conversation func() *rtscribe.Conversation

	mu      sync.Mutex
	done    map[string]bool
	printed map[string]bool
}

func newTranscriptPrinter(w io.Writer) *transcriptPrinter {
	return &transcriptPrinter{
		w:       w,
		done:    map[string]bool{},
		printed: map[string]bool{},
	}
}

// OnEvent runs after the event has been applied to the store.
func (p *transcriptPrinter) OnEvent(env events.Envelope) {
	if env.Type() != events.TypeInputAudioTranscriptionCompleted {
		return
	}
	evt, err := events.Parse[events.ContentDoneEvent](env.Server.Payload)
	if err != nil || evt.ItemID == "" {
		return
	}

	p.mu.Lock()
	p.done[evt.ItemID] = true
	p.mu.Unlock()

	p.print(p.conversation(), false)
}

// Flush also prints utterances whose transcription never completed.
func (p *transcriptPrinter) Flush(conv *rtscribe.Conversation) {
	p.print(conv, true)
}

func (p *transcriptPrinter) print(conv *rtscribe.Conversation, all bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, it := range conv.Items() {
		if it.Role != events.RoleUser || p.printed[it.ID] {
			continue
		}
		if !all && !p.done[it.ID] {
			// keep utterances in order
			return
		}
		part, ok := it.Part(events.ContentTypeInputAudio)
		p.printed[it.ID] = true
		if text := strings.TrimSpace(part.Transcript); ok && text != "" {
			fmt.Fprintln(p.w, text)
		}
	}
}
