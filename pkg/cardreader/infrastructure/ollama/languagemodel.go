package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/common"
)

const (
	// ConfigKeyOllamaHost the base URL of the Ollama server
	ConfigKeyOllamaHost = "ollamaHost"
	// ConfigKeyOllamaModel the name of the model as Ollama knows it ("moondream" matches "moondream:latest")
	ConfigKeyOllamaModel = "ollamaModel"
	// ConfigKeyLLMResponseTimeout when to give up on the server
	ConfigKeyLLMResponseTimeout = "llmResponseTimeout"
)

var ErrModelNotFound = errors.New("model not found on the Ollama server")

// Endpoint which Ollama API to use.
type Endpoint int

const (
	// EndpointChat /api/chat: the dialog is sent as messages, images are attached to the messages
	EndpointChat = Endpoint(iota)
	// EndpointGenerate /api/generate: a single prompt (the last user message) with its images
	EndpointGenerate
)

type LanguageModel struct {
	mutex     sync.Mutex
	client    *api.Client
	modelName string
	endpoint  Endpoint
}

// NewLanguageModel creates a language model served by Ollama.
func NewLanguageModel(endpoint Endpoint, config *common.Config) (*LanguageModel, error) {
	host := config.GetStringOrDefault(ConfigKeyOllamaHost, "http://localhost:11434")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigKeyOllamaHost, err)
	}
	httpClient := &http.Client{
		Timeout: config.GetDurationOrDefault(ConfigKeyLLMResponseTimeout, 2*time.Minute),
	}
	return &LanguageModel{
		client:    api.NewClient(baseURL, httpClient),
		modelName: config.GetStringOrDefault(ConfigKeyOllamaModel, "qwen2.5vl:3b-q4_K_M"),
		endpoint:  endpoint,
	}, nil
}

func (l *LanguageModel) Name() string {
	return "ollama:" + l.modelName
}

// CheckHealth makes sure the server is up and has the model pulled. A model is available if the name of any local
// model starts with the configured name.
func (l *LanguageModel) CheckHealth(ctx context.Context) error {
	response, err := l.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	for _, model := range response.Models {
		if strings.HasPrefix(model.Name, l.modelName) || strings.HasPrefix(model.Model, l.modelName) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (run \"ollama pull %s\")", ErrModelNotFound, l.modelName, l.modelName)
}

func (l *LanguageModel) Complete(
	ctx context.Context,
	messages []*domain.Message,
	options domain.CompleteOptions,
	onFragment domain.FragmentFunc,
) (string, error) {
	// Only 1 request can be processed at a time: a local Ollama server shares the same GPU.
	l.mutex.Lock()
	defer l.mutex.Unlock()
	stream := onFragment != nil
	var buf strings.Builder
	appendFragment := func(fragment string) {
		if fragment == "" {
			return
		}
		buf.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}
	var err error
	switch l.endpoint {
	case EndpointGenerate:
		err = l.generate(ctx, messages, options, stream, appendFragment)
	default:
		err = l.chat(ctx, messages, options, stream, appendFragment)
	}
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return buf.String(), nil
}

func (l *LanguageModel) chat(
	ctx context.Context,
	messages []*domain.Message,
	options domain.CompleteOptions,
	stream bool,
	appendFragment func(string),
) error {
	request := &api.ChatRequest{
		Model:    l.modelName,
		Messages: toAPIMessages(messages),
		Stream:   &stream,
		Options:  toAPIOptions(options),
	}
	return l.client.Chat(ctx, request, func(response api.ChatResponse) error {
		appendFragment(response.Message.Content)
		return nil
	})
}

func (l *LanguageModel) generate(
	ctx context.Context,
	messages []*domain.Message,
	options domain.CompleteOptions,
	stream bool,
	appendFragment func(string),
) error {
	userMessage := domain.LastUserMessage(messages)
	if userMessage == nil {
		return errors.New("no user message to generate from")
	}
	request := &api.GenerateRequest{
		Model:   l.modelName,
		Prompt:  userMessage.Text(),
		Images:  toImageData(userMessage.Images()),
		Stream:  &stream,
		Options: toAPIOptions(options),
	}
	return l.client.Generate(ctx, request, func(response api.GenerateResponse) error {
		appendFragment(response.Response)
		return nil
	})
}

func toAPIMessages(messages []*domain.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for _, message := range messages {
		result = append(result, api.Message{
			Role:    string(message.Role),
			Content: message.Text(),
			Images:  toImageData(message.Images()),
		})
	}
	return result
}

func toImageData(images []*domain.CardImage) []api.ImageData {
	if len(images) == 0 {
		return nil
	}
	result := make([]api.ImageData, 0, len(images))
	for _, image := range images {
		result = append(result, api.ImageData(image.JPEG))
	}
	return result
}

// toAPIOptions zero TopP/RepeatPenalty/MaxTokens leave the server's defaults.
func toAPIOptions(options domain.CompleteOptions) map[string]any {
	result := map[string]any{
		"temperature": options.Temperature,
	}
	if options.MaxTokens > 0 {
		result["num_predict"] = options.MaxTokens
	}
	if options.TopP > 0 {
		result["top_p"] = options.TopP
	}
	if options.RepeatPenalty > 0 {
		result["repeat_penalty"] = options.RepeatPenalty
	}
	if len(options.Stop) > 0 {
		result["stop"] = options.Stop
	}
	return result
}
