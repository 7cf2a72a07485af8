package llamacpp

import (
	"strings"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
)

// mediaMarker tells llama-mtmd-cli where to put the image passed with --image.
const mediaMarker = "<__media__>"

// PromptFormatter different language models assume different formatting rules and can be quite sensitive to
// slight variations.
type PromptFormatter interface {
	// FormatPrompt renders the dialog; `image` is the only image the binary receives, so only its part gets a
	// media marker.
	FormatPrompt(messages []*domain.Message, image *domain.CardImage) string
	// StopSequences the sequences which end the assistant's turn.
	StopSequences() []string
}

type chatMLPromptFormatter struct{}

// NewChatMLPromptFormatter the format used by Qwen2.5/Qwen2-VL and most recent instruction-tuned GGUF models.
func NewChatMLPromptFormatter() PromptFormatter {
	return &chatMLPromptFormatter{}
}

func (c *chatMLPromptFormatter) FormatPrompt(messages []*domain.Message, image *domain.CardImage) string {
	var buf strings.Builder
	for _, message := range messages {
		buf.WriteString("<|im_start|>")
		buf.WriteString(string(message.Role))
		buf.WriteString("\n")
		for _, part := range message.Parts {
			if part.Image != nil {
				if part.Image == image {
					buf.WriteString(mediaMarker)
					buf.WriteString("\n")
				}
				continue
			}
			buf.WriteString(part.Text)
		}
		buf.WriteString("<|im_end|>\n")
	}
	// the hanging assistant header forces the model to answer
	buf.WriteString("<|im_start|>assistant\n")
	return buf.String()
}

func (c *chatMLPromptFormatter) StopSequences() []string {
	return []string{"<|im_end|>", "<|im_start|>"}
}
