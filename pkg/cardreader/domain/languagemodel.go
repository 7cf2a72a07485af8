package domain

import "context"

// FragmentFunc receives generated text as it arrives. Fragments concatenated in arrival order make up the
// complete response.
type FragmentFunc func(fragment string)

// LanguageModel a generic interface for a (possibly multimodal) large language model.
type LanguageModel interface {
	// Name the name of the model. Useful for debugging.
	Name() string
	// Complete continues the dialog and returns the complete response. If `onFragment` is not nil, the response
	// is streamed to it as well.
	Complete(ctx context.Context, messages []*Message, options CompleteOptions, onFragment FragmentFunc) (string, error)
}

// OCREngine extracts text from an image, with no structure or confidence score.
type OCREngine interface {
	Recognize(ctx context.Context, image *CardImage) (string, error)
}
