package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/common"
)

type languageModelDecorator struct {
	wrappedLanguageModel domain.LanguageModel
	logger               common.Logger
}

func NewLanguageModelDecorator(wrappedLanguageModel domain.LanguageModel, logger common.Logger) domain.LanguageModel {
	return &languageModelDecorator{
		wrappedLanguageModel: wrappedLanguageModel,
		logger:               logger,
	}
}

func (l *languageModelDecorator) Name() string {
	return l.wrappedLanguageModel.Name()
}

func (l *languageModelDecorator) Complete(
	ctx context.Context,
	messages []*domain.Message,
	options domain.CompleteOptions,
	onFragment domain.FragmentFunc,
) (string, error) {
	l.logger.Log(fmt.Sprintf("\n================\n raw prompt (using '%s'):\n%s\n================\n\n", l.Name(), formatMessages(messages)))
	t := time.Now()
	response, err := l.wrappedLanguageModel.Complete(ctx, messages, options, onFragment)
	if err != nil {
		l.logger.Log(fmt.Sprintf("\n================\n prompt failed: %s\n (took %d ms)\n================\n", err, time.Since(t).Milliseconds()))
		return "", err
	}
	l.logger.Log(fmt.Sprintf("\n================\n raw prompt response:\n%s\n (took %d ms)\n================\n", response, time.Since(t).Milliseconds()))
	return response, nil
}

// formatMessages images are logged by their size and digest only.
func formatMessages(messages []*domain.Message) string {
	var buf strings.Builder
	for i, message := range messages {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(string(message.Role))
		buf.WriteString(":")
		for _, image := range message.Images() {
			buf.WriteString(fmt.Sprintf(" [image %dx%d, %d bytes, %s]", image.Width, image.Height, len(image.JPEG), common.Hash(image.JPEG)))
		}
		buf.WriteString("\n")
		buf.WriteString(message.Text())
	}
	return buf.String()
}
