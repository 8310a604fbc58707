package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultMaxMessages     = 20
	DefaultMaxToolResponse = 2000
)

// ConversationStore keeps the history of one conversation.
type ConversationStore interface {
	Add(ctx context.Context, msg adk.Message) error
	List(ctx context.Context) ([]adk.Message, error)
	Clear(ctx context.Context) error
}

// MemoryStore is a sliding window over the latest messages. Long tool
// results are cut down before they are stored.
type MemoryStore struct {
	mu              sync.RWMutex
	msgs            []adk.Message
	maxMessages     int
	maxToolResponse int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		maxMessages:     DefaultMaxMessages,
		maxToolResponse: DefaultMaxToolResponse,
	}
}

func (s *MemoryStore) Add(ctx context.Context, msg adk.Message) error {
	if msg == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Role == schema.Tool {
		msg = s.compressToolResponse(msg)
	}
	s.msgs = append(s.msgs, msg)

	if len(s.msgs) > s.maxMessages {
		s.msgs = s.msgs[len(s.msgs)-s.maxMessages:]
		// a tool result must not lead the window without its call
		for len(s.msgs) > 0 && s.msgs[0].Role == schema.Tool {
			s.msgs = s.msgs[1:]
		}
	}
	return nil
}

// compressToolResponse cuts at the last sentence or line break past half
// the limit and notes how much was dropped.
func (s *MemoryStore) compressToolResponse(msg adk.Message) adk.Message {
	if len(msg.Content) <= s.maxToolResponse {
		return msg
	}

	originalLen := len(msg.Content)
	truncated := msg.Content[:s.maxToolResponse]

	cutoff := s.maxToolResponse
	for _, bp := range []string{".\n", ". ", "\n\n", "\n"} {
		if idx := strings.LastIndex(truncated, bp); idx > s.maxToolResponse/2 {
			cutoff = idx + len(bp)
			break
		}
	}

	compressed := msg.Content[:cutoff] + fmt.Sprintf(
		"\n\n[Content truncated: original %d chars -> %d chars, saved %.1f%%]",
		originalLen,
		cutoff,
		float64(originalLen-cutoff)/float64(originalLen)*100,
	)

	out := *msg
	out.Content = compressed
	return &out
}

func (s *MemoryStore) List(ctx context.Context) ([]adk.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]adk.Message, len(s.msgs))
	copy(result, s.msgs)
	return result, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}
