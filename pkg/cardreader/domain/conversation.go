package domain

import (
	"errors"
	"fmt"
)

var ErrTurnOutOfOrder = errors.New("turn out of order")

// Conversation the dialog history of a single chat session. Turns are append-only and alternate between the
// user and the assistant, starting with the user.
type Conversation struct {
	messages []*Message
}

func NewConversation() *Conversation {
	return &Conversation{}
}

func (c *Conversation) Append(message *Message) error {
	expected := RoleUser
	if len(c.messages) > 0 && c.messages[len(c.messages)-1].Role == RoleUser {
		expected = RoleAssistant
	}
	if message.Role != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrTurnOutOfOrder, expected, message.Role)
	}
	c.messages = append(c.messages, message)
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []*Message {
	result := make([]*Message, len(c.messages))
	copy(result, c.messages)
	return result
}

func (c *Conversation) Len() int {
	return len(c.messages)
}
