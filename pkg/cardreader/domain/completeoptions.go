package domain

import "kgeyst.com/cardreader/pkg/common"

// CompleteOptions generation parameters passed to a LanguageModel. Zero TopP/RepeatPenalty/MaxTokens mean
// "the backend's default"; Temperature is always passed as is, so 0.0 means greedy decoding.
type CompleteOptions struct {
	Temperature   float64
	MaxTokens     int
	TopP          float64
	RepeatPenalty float64
	Stop          []string
}

// NewCompleteOptions the options used for extraction (deterministic by default).
func NewCompleteOptions(config *common.Config) CompleteOptions {
	return CompleteOptions{
		Temperature:   config.GetFloatOrDefault(ConfigKeyLLMTemperature, 0.0),
		MaxTokens:     config.GetIntOrDefault(ConfigKeyLLMMaxTokens, 2048),
		TopP:          config.GetFloatOrDefault(ConfigKeyLLMTopP, 0.0),
		RepeatPenalty: config.GetFloatOrDefault(ConfigKeyLLMRepeatPenalty, 0.0),
		Stop:          config.GetStringSliceOrDefault(ConfigKeyLLMStop, nil),
	}
}

func (c CompleteOptions) WithTemperature(value float64) CompleteOptions {
	c.Temperature = value
	return c
}

func (c CompleteOptions) WithMaxTokens(value int) CompleteOptions {
	c.MaxTokens = value
	return c
}

// WithStop adds stop sequences which aren't there yet.
func (c CompleteOptions) WithStop(values ...string) CompleteOptions {
	stop := make([]string, 0, len(c.Stop)+len(values))
	stop = append(stop, c.Stop...)
	for _, value := range values {
		found := false
		for _, existing := range stop {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			stop = append(stop, value)
		}
	}
	c.Stop = stop
	return c
}
