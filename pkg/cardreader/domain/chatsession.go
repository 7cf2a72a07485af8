package domain

import "context"

// ChatSession keeps the history of an interactive dialog with a model. It's owned by a single REPL loop and is
// not safe for concurrent use.
type ChatSession struct {
	model        LanguageModel
	options      CompleteOptions
	conversation *Conversation
}

func NewChatSession(model LanguageModel, options CompleteOptions) *ChatSession {
	return &ChatSession{
		model:        model,
		options:      options,
		conversation: NewConversation(),
	}
}

// Ask sends the whole history plus the new turn to the model. The turn and the answer are only recorded if the
// model responds, so a failed call leaves the history as it was.
func (c *ChatSession) Ask(ctx context.Context, prompt string, image *CardImage, onFragment FragmentFunc) (string, error) {
	userMessage := NewUserMessage(prompt, image)
	messages := append(c.conversation.Messages(), userMessage)
	response, err := c.model.Complete(ctx, messages, c.options, onFragment)
	if err != nil {
		return "", err
	}
	err = c.conversation.Append(userMessage)
	if err != nil {
		return "", err
	}
	err = c.conversation.Append(NewTextMessage(RoleAssistant, response))
	if err != nil {
		return "", err
	}
	return response, nil
}

func (c *ChatSession) Conversation() *Conversation {
	return c.conversation
}
