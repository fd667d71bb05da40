package core

import (
	"context"
	"io"
	"strings"

	"studymind.io/study-aid/internal/store"
)

// fakeGenerator mimics the gateway's quiz contract, including the
// insufficient-context precondition, without touching the network.
type fakeGenerator struct {
	questions []store.Question
	err       error
	calls     int
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, notesContext string) ([]store.Question, error) {
	if len(strings.TrimSpace(notesContext)) < MinContextChars {
		return nil, ErrInsufficientContext
	}
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(context.Context, string, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// sliceStream replays fixed fragments, then finalErr (io.EOF for a clean end).
type sliceStream struct {
	chunks   []string
	pos      int
	finalErr error
}

func (s *sliceStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		if s.finalErr != nil {
			return "", s.finalErr
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

type fakeStreamer struct {
	stream   *sliceStream
	startErr error

	gotContext string
	gotHistory []store.ChatMessage
	gotText    string
}

func (f *fakeStreamer) StreamChat(_ context.Context, notesContext string, history []store.ChatMessage, userText string) (ChunkStream, error) {
	f.gotContext = notesContext
	f.gotHistory = history
	f.gotText = userText
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.stream, nil
}

func fiveQuestions() []store.Question {
	questions := make([]store.Question, QuizQuestionCount)
	for i := range questions {
		questions[i] = store.Question{
			QuestionText:       "Question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: i % QuizOptionCount,
		}
	}
	return questions
}
