package domain

import "errors"

// Turn is one message in a conversation. Turns are never mutated after creation.
type Turn struct {
	Role      Role
	Text      string
	Timestamp Timestamp
}

// Conversation is the ordered list of turns for one SessionKey.
// Turns alternate user/assistant starting with user; the system
// instruction sent to the model is never part of it.
type Conversation struct {
	Key   SessionKey
	turns []Turn
}

var ErrBrokenAlternation = errors.New("conversation turns must alternate user/assistant")

func NewConversation(key SessionKey) *Conversation {
	return &Conversation{Key: key}
}

// RestoreConversation rebuilds a conversation from stored turns, keeping
// stored order. Turns that cannot be paired (a user turn whose reply was never
// persisted, or an assistant turn without a preceding user turn) are dropped
// and counted.
func RestoreConversation(key SessionKey, stored []Turn) (*Conversation, int) {
	c := NewConversation(key)
	dropped := 0

	for i := 0; i < len(stored); i++ {
		t := stored[i]
		if t.Role != RoleUser {
			dropped++
			continue
		}
		if i+1 >= len(stored) || stored[i+1].Role != RoleAssistant {
			dropped++
			continue
		}
		c.turns = append(c.turns, t, stored[i+1])
		i++
	}

	return c, dropped
}

// Turns returns a copy of the turns in order.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

// AppendExchange appends a user turn and the assistant reply to it.
func (c *Conversation) AppendExchange(user, assistant Turn) error {
	if user.Role != RoleUser || assistant.Role != RoleAssistant {
		return ErrBrokenAlternation
	}
	c.turns = append(c.turns, user, assistant)
	return nil
}
