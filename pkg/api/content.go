package api

import "encoding/json"

// ContentPartType identifies the kind of a content part.
type ContentPartType string

const (
	ContentTypeInputText     ContentPartType = "input_text"
	ContentTypeInputImage    ContentPartType = "input_image"
	ContentTypeInputFile     ContentPartType = "input_file"
	ContentTypeInputVideo    ContentPartType = "input_video"
	ContentTypeOutputText    ContentPartType = "output_text"
	ContentTypeText          ContentPartType = "text"
	ContentTypeSummaryText   ContentPartType = "summary_text"
	ContentTypeReasoningText ContentPartType = "reasoning_text"
	ContentTypeRefusal       ContentPartType = "refusal"
)

var knownContentTypes = map[ContentPartType]bool{
	ContentTypeInputText:     true,
	ContentTypeInputImage:    true,
	ContentTypeInputFile:     true,
	ContentTypeInputVideo:    true,
	ContentTypeOutputText:    true,
	ContentTypeText:          true,
	ContentTypeSummaryText:   true,
	ContentTypeReasoningText: true,
	ContentTypeRefusal:       true,
}

// KnownContentType reports whether t is a content part kind this client
// understands.
func KnownContentType(t ContentPartType) bool {
	return knownContentTypes[t]
}

// ImageDetail selects the resolution an image is presented to the model at.
type ImageDetail string

const (
	DetailAuto ImageDetail = "auto"
	DetailHigh ImageDetail = "high"
	DetailLow  ImageDetail = "low"
)

// Annotation is an annotation on output text, such as a URL citation.
type Annotation struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// Logprob holds log probability information for a single sampled token.
type Logprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	Bytes       []int        `json:"bytes,omitempty"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

// TopLogprob holds a candidate token and its log probability.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
	Bytes   []int   `json:"bytes,omitempty"`
}

// ContentPart is one part of an item's content. Exactly one variant is
// active, selected by Type. Unrecognized kinds keep their raw payload in
// Raw and re-encode verbatim.
type ContentPart struct {
	Type ContentPartType

	// Text carries the text of input_text, text, summary_text,
	// reasoning_text, and output_text parts.
	Text string

	// input_image
	ImageURL string
	Detail   ImageDetail

	// input_file
	Filename string
	FileData string
	FileURL  string

	// input_video
	VideoURL string

	// output_text
	Annotations []Annotation
	Logprobs    []Logprob

	// refusal
	Refusal string

	// Extra holds fields of a recognized kind that this client does not
	// model. They survive a decode/encode round-trip.
	Extra map[string]json.RawMessage

	// Raw is the full payload of an unrecognized kind.
	Raw json.RawMessage
}

// InputText builds an input_text part.
func InputText(text string) ContentPart {
	return ContentPart{Type: ContentTypeInputText, Text: text}
}

// InputImage builds an input_image part from a URL or data URL.
func InputImage(url string, detail ImageDetail) ContentPart {
	if detail == "" {
		detail = DetailAuto
	}
	return ContentPart{Type: ContentTypeInputImage, ImageURL: url, Detail: detail}
}

// OutputText builds an output_text part.
func OutputText(text string) ContentPart {
	return ContentPart{Type: ContentTypeOutputText, Text: text}
}

type wireInputText struct {
	Type ContentPartType `json:"type"`
	Text string          `json:"text"`
}

type wireInputImage struct {
	Type     ContentPartType `json:"type"`
	ImageURL string          `json:"image_url,omitempty"`
	Detail   ImageDetail     `json:"detail,omitempty"`
}

type wireInputFile struct {
	Type     ContentPartType `json:"type"`
	Filename string          `json:"filename,omitempty"`
	FileData string          `json:"file_data,omitempty"`
	FileURL  string          `json:"file_url,omitempty"`
}

type wireInputVideo struct {
	Type     ContentPartType `json:"type"`
	VideoURL string          `json:"video_url"`
}

type wireOutputText struct {
	Type        ContentPartType `json:"type"`
	Text        string          `json:"text"`
	Annotations []Annotation    `json:"annotations"`
	Logprobs    []Logprob       `json:"logprobs"`
}

type wireRefusal struct {
	Type    ContentPartType `json:"type"`
	Refusal string          `json:"refusal"`
}

// MarshalJSON writes the flat wire shape of the active variant.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if !KnownContentType(p.Type) {
		if len(p.Raw) > 0 {
			return p.Raw, nil
		}
		return marshalWithExtra(struct {
			Type ContentPartType `json:"type"`
		}{p.Type}, p.Extra)
	}

	var wire any
	switch p.Type {
	case ContentTypeInputImage:
		wire = wireInputImage{Type: p.Type, ImageURL: p.ImageURL, Detail: p.Detail}
	case ContentTypeInputFile:
		wire = wireInputFile{Type: p.Type, Filename: p.Filename, FileData: p.FileData, FileURL: p.FileURL}
	case ContentTypeInputVideo:
		wire = wireInputVideo{Type: p.Type, VideoURL: p.VideoURL}
	case ContentTypeOutputText:
		w := wireOutputText{Type: p.Type, Text: p.Text, Annotations: p.Annotations, Logprobs: p.Logprobs}
		// The schema requires arrays here, never null.
		if w.Annotations == nil {
			w.Annotations = []Annotation{}
		}
		if w.Logprobs == nil {
			w.Logprobs = []Logprob{}
		}
		wire = w
	case ContentTypeRefusal:
		wire = wireRefusal{Type: p.Type, Refusal: p.Refusal}
	default:
		// input_text, text, summary_text, reasoning_text share one shape.
		wire = wireInputText{Type: p.Type, Text: p.Text}
	}
	return marshalWithExtra(wire, p.Extra)
}

// UnmarshalJSON dispatches on the type discriminator. An unrecognized type
// keeps the raw payload; a recognized type with a missing or mistyped
// required field returns a SchemaError.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	t := ContentPartType(wireType(data))
	if t == "" {
		return missingField("type")
	}

	*p = ContentPart{Type: t}
	if !KnownContentType(t) {
		p.Raw = append(json.RawMessage(nil), data...)
		return nil
	}

	switch t {
	case ContentTypeInputImage:
		var w wireInputImage
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.ImageURL = w.ImageURL
		p.Detail = w.Detail
		if p.Detail == "" {
			p.Detail = DetailAuto
		}
		p.Extra = extraFields(data, &w)

	case ContentTypeInputFile:
		var w wireInputFile
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.Filename = w.Filename
		p.FileData = w.FileData
		p.FileURL = w.FileURL
		p.Extra = extraFields(data, &w)

	case ContentTypeInputVideo:
		if err := requireString(data, "video_url"); err != nil {
			return err
		}
		var w wireInputVideo
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.VideoURL = w.VideoURL
		p.Extra = extraFields(data, &w)

	case ContentTypeOutputText:
		if err := requireString(data, "text"); err != nil {
			return err
		}
		var w wireOutputText
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.Text = w.Text
		p.Annotations = w.Annotations
		p.Logprobs = w.Logprobs
		p.Extra = extraFields(data, &w)

	case ContentTypeRefusal:
		if err := requireString(data, "refusal"); err != nil {
			return err
		}
		var w wireRefusal
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.Refusal = w.Refusal
		p.Extra = extraFields(data, &w)

	default:
		if err := requireString(data, "text"); err != nil {
			return err
		}
		var w wireInputText
		if err := json.Unmarshal(data, &w); err != nil {
			return contentSchemaError(err)
		}
		p.Text = w.Text
		p.Extra = extraFields(data, &w)
	}

	return nil
}

// contentSchemaError wraps a json decode error as a SchemaError, keeping
// the field name when encoding/json provides one.
func contentSchemaError(err error) error {
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return wrongType(ute.Field, ute.Type.String())
	}
	return NewSchemaError("", err.Error())
}
