package domain

import (
	"context"
	"strings"

	"kgeyst.com/cardreader/pkg/common"
)

// ContactExtractor turns a card image into a Result. Implementations never return errors: every failure is
// reported inside the Result.
type ContactExtractor interface {
	Extract(ctx context.Context, image *CardImage) *Result
}

type visionExtractor struct {
	model    LanguageModel
	repairer *ContactRepairer
	options  CompleteOptions
	logger   common.Logger
}

// NewVisionExtractor hands the image directly to a multimodal model.
func NewVisionExtractor(
	model LanguageModel,
	repairer *ContactRepairer,
	options CompleteOptions,
	logger common.Logger,
) ContactExtractor {
	return &visionExtractor{
		model:    model,
		repairer: repairer,
		options:  options,
		logger:   logger,
	}
}

func (v *visionExtractor) Extract(ctx context.Context, image *CardImage) *Result {
	if image == nil {
		return NewFailedResult(ErrorMessageNoImage)
	}
	messages := []*Message{NewUserMessage(VisionPrompt, image)}
	response, err := v.model.Complete(ctx, messages, v.options, nil)
	if err != nil {
		return NewFailedResult(ErrorMessageInferenceError + err.Error())
	}
	contact, err := v.repairer.Repair(response)
	if err != nil {
		common.Logf(v.logger, "Failed to parse model output (%s). Raw output: %s", err, response)
		return NewParseFailureResult(err, response)
	}
	return &Result{Contact: contact}
}

type ocrExtractor struct {
	ocrEngine OCREngine
	model     LanguageModel
	repairer  *ContactRepairer
	options   CompleteOptions
	logger    common.Logger
}

// NewOCRExtractor runs OCR first and asks a text-only model to structure the text.
func NewOCRExtractor(
	ocrEngine OCREngine,
	model LanguageModel,
	repairer *ContactRepairer,
	options CompleteOptions,
	logger common.Logger,
) ContactExtractor {
	return &ocrExtractor{
		ocrEngine: ocrEngine,
		model:     model,
		repairer:  repairer,
		options:   options.WithStop(OCRStopSequences...),
		logger:    logger,
	}
}

func (o *ocrExtractor) Extract(ctx context.Context, image *CardImage) *Result {
	if image == nil {
		return NewFailedResult(ErrorMessageNoImage)
	}
	ocrText, err := o.ocrEngine.Recognize(ctx, image)
	if err != nil {
		result := NewFailedResult(ErrorMessageOCRFailure)
		result.Details = err.Error()
		return result
	}
	ocrText = strings.TrimSpace(ocrText)
	if ocrText == "" {
		result := NewFailedResult(ErrorMessageOCRFailure)
		result.Details = "no text found"
		return result
	}
	common.Logf(o.logger, "OCR text:\n%s", ocrText)
	messages := []*Message{NewTextMessage(RoleUser, OCRPrompt(ocrText))}
	response, err := o.model.Complete(ctx, messages, o.options, nil)
	if err != nil {
		result := NewFailedResult(ErrorMessageInferenceError + err.Error())
		result.RawOCRText = ocrText
		return result
	}
	contact, err := o.repairer.Repair(response)
	if err != nil {
		common.Logf(o.logger, "Failed to parse model output (%s). Raw output: %s", err, response)
		result := NewParseFailureResult(err, response)
		result.RawOCRText = ocrText
		return result
	}
	return &Result{
		Contact:    contact,
		RawOCRText: ocrText,
	}
}
