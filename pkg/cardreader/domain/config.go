package domain

// A list of built-in config keys. Infrastructure packages document the keys specific to them next to their code.

const (
	// ConfigKeyBackend which inference backend to use: "ollama-chat", "ollama-generate" or "llamacpp"
	ConfigKeyBackend = "backend"
	// ConfigKeyPipeline "vision" sends the image to the model directly; "ocr" runs OCR first and sends the text
	// to a text-only model
	ConfigKeyPipeline = "pipeline"
	// ConfigKeyLLMTemperature the temperature for extraction and one-shot queries (0.0 = deterministic)
	ConfigKeyLLMTemperature = "llmTemperature"
	// ConfigKeyChatTemperature the temperature in the interactive chat mode
	ConfigKeyChatTemperature = "chatTemperature"
	// ConfigKeyLLMMaxTokens the maximum number of generated tokens
	ConfigKeyLLMMaxTokens = "llmMaxTokens"
	// ConfigKeyLLMTopP nucleus sampling; 0 leaves the backend's default
	ConfigKeyLLMTopP = "llmTopP"
	// ConfigKeyLLMRepeatPenalty a coefficient against repetitions of same tokens; 0 leaves the backend's default
	ConfigKeyLLMRepeatPenalty = "llmRepeatPenalty"
	// ConfigKeyLLMStop additional stop sequences
	ConfigKeyLLMStop = "llmStop"
	// ConfigKeyJSONExtraction how to find the JSON object in the model output: "firstlast" or "balanced"
	ConfigKeyJSONExtraction = "jsonExtraction"
	// ConfigKeyLogPath file path where to save the logs
	ConfigKeyLogPath = "logPath"
)

// Values of ConfigKeyBackend.
const (
	BackendOllamaChat     = "ollama-chat"
	BackendOllamaGenerate = "ollama-generate"
	BackendLlamaCpp       = "llamacpp"
)

// Values of ConfigKeyPipeline.
const (
	PipelineVision = "vision"
	PipelineOCR    = "ocr"
)

// Values of ConfigKeyJSONExtraction.
const (
	JSONExtractionFirstLast = "firstlast"
	JSONExtractionBalanced  = "balanced"
)
