package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"studymind.io/study-aid/internal/config"
	"studymind.io/study-aid/internal/store"
)

const (
	defaultChatModelName   = "gemini-1.5-flash-latest"
	defaultQuizModelName   = "gemini-1.5-flash-latest"
	defaultVisionModelName = "gemini-1.5-flash-latest"

	// MinContextChars is the minimum trimmed length of the concatenated note
	// context required before a quiz request is sent to the model.
	MinContextChars = 50

	// QuizQuestionCount and QuizOptionCount fix the shape of every generated quiz.
	QuizQuestionCount = 5
	QuizOptionCount   = 4

	chatSystemInstruction = "You are a helpful study assistant. Answer the user's questions using ONLY the study notes provided below. " +
		"If the answer is not found in the notes, clearly state that the notes do not cover it. " +
		"Never draw on outside knowledge and never make up information.\n\n" +
		"STUDY NOTES:\n%s"

	extractionInstruction = "Extract all text from this image. Format the extracted text clearly as study notes. " +
		"Return only the extracted text, nothing else."

	quizPrompt = "Based on the following study notes, generate a multiple-choice quiz with exactly %d questions. " +
		"Each question must have exactly %d answer options and exactly one correct answer.\n\n" +
		"STUDY NOTES:\n%s"
)

// Gateway contract errors.
var (
	ErrInsufficientContext = errors.New("not enough note content to generate a quiz")
	ErrEmptyQuiz           = errors.New("AI failed to generate quiz questions")
)

// QuizGenerator produces a fixed-shape multiple-choice quiz from note context.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, notesContext string) ([]store.Question, error)
}

// TextExtractor pulls study-note text out of an uploaded image.
type TextExtractor interface {
	ExtractText(ctx context.Context, mimeType string, imageData []byte) (string, error)
}

// ChunkStream is a finite, one-shot stream of reply fragments. Next returns
// io.EOF after the final fragment. Fragments must be applied in arrival order.
type ChunkStream interface {
	Next() (string, error)
}

// ChatStreamer streams a model reply grounded in the provided note context.
type ChatStreamer interface {
	StreamChat(ctx context.Context, notesContext string, history []store.ChatMessage, userText string) (ChunkStream, error)
}

// LLMService is the single integration point with the Gemini API. It
// implements QuizGenerator, TextExtractor and ChatStreamer.
type LLMService struct {
	client *genai.Client
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client: client,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

// quizResponseSchema constrains the model output to the quiz JSON contract:
// an object with a single "questions" array, every item carrying a question,
// exactly QuizOptionCount options, and a correct answer index.
func quizResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question": {Type: genai.TypeString},
						"options": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
						"correctAnswerIndex": {Type: genai.TypeInteger},
					},
					Required: []string{"question", "options", "correctAnswerIndex"},
				},
			},
		},
		Required: []string{"questions"},
	}
}

// GenerateQuiz asks the model for a quiz over the concatenated note context.
// The insufficient-context precondition is checked before any network call.
func (s *LLMService) GenerateQuiz(ctx context.Context, notesContext string) ([]store.Question, error) {
	if len(strings.TrimSpace(notesContext)) < MinContextChars {
		return nil, ErrInsufficientContext
	}

	model := s.client.GenerativeModel(defaultQuizModelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   quizResponseSchema(),
	}

	prompt := fmt.Sprintf(quizPrompt, QuizQuestionCount, QuizOptionCount, notesContext)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini quiz generation request failed: %w", err)
	}

	raw := collectResponseText(resp)
	if raw == "" {
		log.Println("Gemini quiz response was empty or had no valid candidates/parts.")
		return nil, ErrEmptyQuiz
	}

	questions, err := parseQuizResponse(raw)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// parseQuizResponse decodes and validates the schema-constrained quiz JSON.
func parseQuizResponse(raw string) ([]store.Question, error) {
	var parsed struct {
		Questions []struct {
			Question           string   `json:"question"`
			Options            []string `json:"options"`
			CorrectAnswerIndex int      `json:"correctAnswerIndex"`
		} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quiz response JSON: %w", err)
	}

	if len(parsed.Questions) == 0 {
		return nil, ErrEmptyQuiz
	}

	questions := make([]store.Question, 0, len(parsed.Questions))
	for i, q := range parsed.Questions {
		if q.Question == "" {
			return nil, fmt.Errorf("quiz question %d has empty text", i)
		}
		if len(q.Options) != QuizOptionCount {
			return nil, fmt.Errorf("quiz question %d has %d options, want %d", i, len(q.Options), QuizOptionCount)
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return nil, fmt.Errorf("quiz question %d has out-of-range correct answer index %d", i, q.CorrectAnswerIndex)
		}
		questions = append(questions, store.Question{
			QuestionText:       q.Question,
			Options:            q.Options,
			CorrectAnswerIndex: q.CorrectAnswerIndex,
		})
	}
	return questions, nil
}

// ExtractText sends an image to the vision model in a single call and returns
// the extracted text. No chunking or multi-page handling.
func (s *LLMService) ExtractText(ctx context.Context, mimeType string, imageData []byte) (string, error) {
	// genai.ImageData wants the bare format, not the full MIME type.
	format := strings.TrimPrefix(mimeType, "image/")

	model := s.client.GenerativeModel(defaultVisionModelName)
	resp, err := model.GenerateContent(ctx, genai.ImageData(format, imageData), genai.Text(extractionInstruction))
	if err != nil {
		return "", fmt.Errorf("gemini text extraction request failed: %w", err)
	}

	text := collectResponseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text for the image")
	}
	return text, nil
}

// StreamChat starts a one-shot streamed reply grounded in the note context.
// The full prior conversation is sent along with the new user turn.
func (s *LLMService) StreamChat(ctx context.Context, notesContext string, history []store.ChatMessage, userText string) (ChunkStream, error) {
	if userText == "" {
		return nil, fmt.Errorf("user message is empty")
	}

	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(chatSystemInstruction, notesContext))},
	}

	chatSession := model.StartChat()
	for _, msg := range history {
		chatSession.History = append(chatSession.History, &genai.Content{
			Role:  msg.Role,
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}

	iter := chatSession.SendMessageStream(ctx, genai.Text(userText))
	return &geminiChunkStream{iter: iter}, nil
}

type geminiChunkStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *geminiChunkStream) Next() (string, error) {
	resp, err := s.iter.Next()
	if err == iterator.Done {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("gemini chat stream failed: %w", err)
	}
	return collectResponseText(resp), nil
}

func collectResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	return text.String()
}
