package domain

import (
	"fmt"
	"strings"
)

// VisionPrompt is sent together with the card image to a vision model.
const VisionPrompt = "You are an expert assistant that analyzes business card images. " +
	"Your task is to extract the contact information and return *ONLY* a single, valid JSON object. " +
	"Do not add any text, explanations, or markdown formatting before or after the JSON.\n" +
	"Analyze the attached business card image and extract the contact details. " +
	"Use the following JSON schema and set fields to null if not found:\n" +
	"{\n" +
	`  "name": "...",` + "\n" +
	`  "title": "...",` + "\n" +
	`  "company": "...",` + "\n" +
	`  "phone": "...",` + "\n" +
	`  "email": "...",` + "\n" +
	`  "website": "...",` + "\n" +
	`  "address": "...",` + "\n" +
	`  "miscellaneous": "..."` + "\n" +
	"}\n\n" +
	"Respond with *only* the populated JSON object."

const ocrPromptTemplate = `You are an assistant that organizes business card information.

Below is text extracted from a business card via OCR:

---
%s
---

Analyze this text and extract the following information into a JSON object:

{
  "name": "person's full name",
  "title": "job title or position",
  "company": "company or organization name",
  "phone": "phone number(s)",
  "email": "email address",
  "website": "website URL",
  "address": "physical address",
  "miscellaneous": "any other relevant information"
}

Rules:
1. Extract information only from the provided OCR text
2. Use empty string "" if a field is not found
3. Clean up any OCR errors if obvious (e.g., "emai1" → "email")
4. Combine multi-line addresses into a single string
5. Return ONLY the JSON object, no explanations

JSON:`

// OCRStopSequences text-only chat models tend to run past the object; these cut them off.
var OCRStopSequences = []string{"</s>", "<|im_end|>", "<|endoftext|>", "\n\n\n"}

// OCRPrompt asks a text-only model to structure OCR output.
func OCRPrompt(ocrText string) string {
	return fmt.Sprintf(ocrPromptTemplate, strings.TrimSpace(ocrText))
}
