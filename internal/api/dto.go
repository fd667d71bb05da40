package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// CreateNoteRequest is the request body for creating a typed note.
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// CreateImageNoteRequest is the request body for creating a note from an
// image. Data carries the image bytes base64-encoded.
type CreateImageNoteRequest struct {
	Title    string `json:"title"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

func (r CreateImageNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.MimeType, validation.Required,
			validation.In("image/png", "image/jpeg", "image/webp", "image/heic", "image/heif")),
		validation.Field(&r.Data, validation.Required, is.Base64),
	)
}

// AnswerRequest records a selection for one quiz question.
type AnswerRequest struct {
	QuestionIndex int `json:"question_index"`
	OptionIndex   int `json:"option_index"`
}

func (r AnswerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.QuestionIndex, validation.Min(0)),
		validation.Field(&r.OptionIndex, validation.Min(0)),
	)
}

// ChatMessageRequest is the request body for sending a chat message.
type ChatMessageRequest struct {
	Text string `json:"text"`
}

func (r ChatMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}
