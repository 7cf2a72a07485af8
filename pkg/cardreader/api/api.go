package api

import (
	"context"
	"fmt"
	"strings"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/filesystem"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/imaging"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/llamacpp"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/logging"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/metrics"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/ollama"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/tesseract"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/web"
	"kgeyst.com/cardreader/pkg/common"
)

// See domain/config.go
const (
	ConfigKeyBackend         = domain.ConfigKeyBackend
	ConfigKeyPipeline        = domain.ConfigKeyPipeline
	ConfigKeyChatTemperature = domain.ConfigKeyChatTemperature
	ConfigKeyJSONExtraction  = domain.ConfigKeyJSONExtraction
	ConfigKeyLogPath         = domain.ConfigKeyLogPath
)

// API is the entrypoint to the card reader. It shouldn't contain any logic of its own; it glues all the components
// together. This API can be used in various contexts: in an IRC chat, an HTTP server, console input/output etc.
type API interface {
	// CheckPrerequisites makes sure the model files/server and the OCR engine (if needed) are in place. Call it once
	// at startup.
	CheckPrerequisites(ctx context.Context) error
	// ParseCard extracts a contact from an image in any supported format. Never fails: errors are reported in the
	// result.
	ParseCard(ctx context.Context, imageData []byte) *domain.Result
	// ParseCardFromLocation same as ParseCard, but the image is loaded from a file path or a URL.
	ParseCardFromLocation(ctx context.Context, location string) *domain.Result
	// Query asks an arbitrary question, optionally about an image, and streams the answer.
	Query(ctx context.Context, prompt string, image *domain.CardImage, onFragment domain.FragmentFunc) (string, error)
	// NewChatSession starts a multi-turn dialog.
	NewChatSession() *domain.ChatSession
	// LoadImage loads an image from a file path or a URL.
	LoadImage(ctx context.Context, location string) (*domain.CardImage, error)
	// FindImageURL finds the first URL in the text. Returns the URL and the text without it.
	FindImageURL(text string) (string, string, bool)
	// ModelName the name of the underlying model. Useful for debugging.
	ModelName() string
}

type prerequisite func(ctx context.Context) error

type api struct {
	languageModel    domain.LanguageModel
	contactExtractor domain.ContactExtractor
	imageLoader      domain.ImageLoader
	imageDownloader  *web.ImageDownloader
	urlFinder        *web.URLFinder
	options          domain.CompleteOptions
	chatOptions      domain.CompleteOptions
	prerequisites    []prerequisite
}

func NewAPI(config *common.Config) (API, error) {
	logger := common.NewFileLogger(config.GetStringOrDefault(ConfigKeyLogPath, "log.txt"))
	return NewAPIWithLogger(config, logger)
}

func NewAPIWithLogger(config *common.Config, logger common.Logger) (API, error) {
	tempFilePathProvider := filesystem.NewTempFilePathProvider(config)
	jsonExtractor, err := domain.NewJSONExtractor(config.GetString(ConfigKeyJSONExtraction))
	if err != nil {
		return nil, err
	}
	repairer := domain.NewContactRepairer(jsonExtractor)
	pipeline := strings.ToLower(config.GetStringOrDefault(ConfigKeyPipeline, domain.PipelineVision))
	if pipeline != domain.PipelineVision && pipeline != domain.PipelineOCR {
		return nil, fmt.Errorf("unknown %s %q", ConfigKeyPipeline, pipeline)
	}
	var prerequisites []prerequisite
	var languageModel domain.LanguageModel
	backend := strings.ToLower(config.GetStringOrDefault(ConfigKeyBackend, domain.BackendOllamaChat))
	switch backend {
	case domain.BackendLlamaCpp:
		model := llamacpp.NewLanguageModel(llamacpp.NewChatMLPromptFormatter(), tempFilePathProvider, config, logger)
		prerequisites = append(prerequisites, func(context.Context) error {
			return model.CheckPrerequisites(pipeline == domain.PipelineVision)
		})
		languageModel = model
	case domain.BackendOllamaChat, domain.BackendOllamaGenerate:
		endpoint := ollama.EndpointChat
		if backend == domain.BackendOllamaGenerate {
			endpoint = ollama.EndpointGenerate
		}
		model, err := ollama.NewLanguageModel(endpoint, config)
		if err != nil {
			return nil, err
		}
		prerequisites = append(prerequisites, model.CheckHealth)
		languageModel = model
	default:
		return nil, fmt.Errorf("unknown %s %q", ConfigKeyBackend, backend)
	}
	languageModel = logging.NewLanguageModelDecorator(languageModel, logger)
	options := domain.NewCompleteOptions(config)
	var contactExtractor domain.ContactExtractor
	if pipeline == domain.PipelineOCR {
		ocrEngine := tesseract.NewEngine(tempFilePathProvider, config)
		prerequisites = append(prerequisites, ocrEngine.CheckAvailable)
		contactExtractor = domain.NewOCRExtractor(ocrEngine, languageModel, repairer, options, logger)
	} else {
		contactExtractor = domain.NewVisionExtractor(languageModel, repairer, options, logger)
	}
	return &api{
		languageModel:    languageModel,
		contactExtractor: metrics.NewContactExtractorDecorator(contactExtractor),
		imageLoader:      imaging.NewEncoder(config),
		imageDownloader:  web.NewImageDownloader(),
		urlFinder:        web.NewURLFinder(),
		options:          options,
		chatOptions:      options.WithTemperature(config.GetFloatOrDefault(ConfigKeyChatTemperature, 0.7)),
		prerequisites:    prerequisites,
	}, nil
}

func (a *api) CheckPrerequisites(ctx context.Context) error {
	for _, check := range a.prerequisites {
		err := check(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *api) ParseCard(ctx context.Context, imageData []byte) *domain.Result {
	if len(imageData) == 0 {
		return domain.NewFailedResult(domain.ErrorMessageNoImage)
	}
	image, err := a.imageLoader.LoadBytes(imageData)
	if err != nil {
		return domain.NewFailedResult(domain.ErrorMessageImageFailure + err.Error())
	}
	return a.contactExtractor.Extract(ctx, image)
}

func (a *api) ParseCardFromLocation(ctx context.Context, location string) *domain.Result {
	image, err := a.LoadImage(ctx, location)
	if err != nil {
		return domain.NewFailedResult(domain.ErrorMessageImageFailure + err.Error())
	}
	return a.contactExtractor.Extract(ctx, image)
}

func (a *api) Query(ctx context.Context, prompt string, image *domain.CardImage, onFragment domain.FragmentFunc) (string, error) {
	messages := []*domain.Message{domain.NewUserMessage(prompt, image)}
	return a.languageModel.Complete(ctx, messages, a.options, onFragment)
}

func (a *api) NewChatSession() *domain.ChatSession {
	return domain.NewChatSession(a.languageModel, a.chatOptions)
}

func (a *api) LoadImage(ctx context.Context, location string) (*domain.CardImage, error) {
	location = common.RemoveQuotesIfAny(strings.TrimSpace(location))
	if isRemote(location) {
		data, err := a.imageDownloader.Download(ctx, location)
		if err != nil {
			return nil, err
		}
		return a.imageLoader.LoadBytes(data)
	}
	return a.imageLoader.LoadFile(location)
}

func (a *api) FindImageURL(text string) (string, string, bool) {
	for _, url := range a.urlFinder.FindURLs(text) {
		if isRemote(url) {
			return url, web.RemoveURL(text, url), true
		}
	}
	return "", text, false
}

func (a *api) ModelName() string {
	return a.languageModel.Name()
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
