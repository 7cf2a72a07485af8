package domain

import "strings"

type Role string

const (
	RoleSystem    = Role("system")
	RoleUser      = Role("user")
	RoleAssistant = Role("assistant")
)

// Part a piece of a message: either text or an image.
type Part struct {
	Text  string
	Image *CardImage
}

// Message a role-tagged turn.
type Message struct {
	Role  Role
	Parts []Part
}

func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{{Text: text}},
	}
}

// NewUserMessage the image (if any) goes before the text: vision models are trained on this order.
func NewUserMessage(text string, image *CardImage) *Message {
	if image == nil {
		return NewTextMessage(RoleUser, text)
	}
	return &Message{
		Role: RoleUser,
		Parts: []Part{
			{Image: image},
			{Text: text},
		},
	}
}

// Text concatenates all text parts.
func (m *Message) Text() string {
	var texts []string
	for _, part := range m.Parts {
		if part.Image == nil && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (m *Message) Images() []*CardImage {
	var images []*CardImage
	for _, part := range m.Parts {
		if part.Image != nil {
			images = append(images, part.Image)
		}
	}
	return images
}

// LastImage finds the most recent image in the dialog, or nil.
func LastImage(messages []*Message) *CardImage {
	for i := len(messages) - 1; i >= 0; i-- {
		images := messages[i].Images()
		if len(images) != 0 {
			return images[len(images)-1]
		}
	}
	return nil
}

// LastUserMessage returns nil if there's no user message.
func LastUserMessage(messages []*Message) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i]
		}
	}
	return nil
}
