package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// ContentGenerator is the subset of *genai.GenerativeModel used for transcription.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

const transcriptionPrompt = `Transcribe every piece of printed and handwritten text visible in this image, verbatim.
The document is written in %s. Read it as %s.
Keep labels and their values together on the same line, in reading order.
Do not translate, summarise, correct or reformat anything, and do not add commentary.
Return ONLY the transcribed text.`

var languageNames = map[string]string{
	"fra": "French",
	"eng": "English",
	"deu": "German",
	"spa": "Spanish",
	"ita": "Italian",
}

var segmentationDescriptions = map[string]string{
	"3":  "a fully automatic page layout",
	"4":  "a single column of text",
	"6":  "a single uniform block of text",
	"11": "sparse text in no particular order",
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"i can't help with",
	"as a large language model",
}

// Vertex transcribes images with a Gemini model on Vertex AI.
type Vertex struct {
	model ContentGenerator
}

// NewVertex returns a Vertex engine using model.
func NewVertex(model ContentGenerator) *Vertex {
	return &Vertex{model: model}
}

func (v *Vertex) Recognize(ctx context.Context, image []byte, opts Options) (string, error) {
	opts = opts.withDefaults()

	format := "png"
	if http.DetectContentType(image) == "image/jpeg" {
		format = "jpeg"
	}

	resp, err := v.model.GenerateContent(ctx,
		genai.ImageData(format, image),
		genai.Text(buildPrompt(opts)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate transcription from gemini: %w", err)
	}

	text := responseText(resp)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			slog.Warn("LLM refusal detected during transcription", "response", text)
			return "", fmt.Errorf("gemini response indicates refusal to transcribe the document")
		}
	}
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func (v *Vertex) Close() error { return nil }

func buildPrompt(opts Options) string {
	var names []string
	for _, code := range opts.LanguageList() {
		if name, ok := languageNames[code]; ok {
			names = append(names, name)
		} else {
			names = append(names, code)
		}
	}
	langs := strings.Join(names, " or ")

	layout, ok := segmentationDescriptions[opts.SegmentationMode]
	if !ok {
		layout = segmentationDescriptions[SegmentationUniformBlock]
	}
	return fmt.Sprintf(transcriptionPrompt, langs, layout)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```text")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
