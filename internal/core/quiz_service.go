package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"studymind.io/study-aid/internal/store"
)

// Quiz session states.
const (
	QuizStateAnswering = "answering"
	QuizStateFinished  = "finished"
)

var (
	ErrNoActiveQuiz = errors.New("no active quiz")
	ErrQuizFinished = errors.New("quiz is already finished")
)

// QuizSession is the in-flight quiz being answered. Questions are fixed at
// creation; the score is computed exactly once on finish.
type QuizSession struct {
	ID        string           `json:"id"`
	Questions []store.Question `json:"questions"`
	Answers   []int            `json:"answers"` // -1 while unanswered; latest answer per question wins
	Position  int              `json:"position"`
	State     string           `json:"state"`
	Score     int              `json:"score"`
	CreatedAt time.Time        `json:"created_at"`

	scored bool
	result *store.Quiz
}

// QuizService owns the single active quiz session and the finished-quiz
// history. The app is single-user, so one session at a time is enough.
type QuizService struct {
	dbStore     *store.SQLiteStore
	generator   QuizGenerator
	noteService *NoteService

	mu      sync.Mutex
	session *QuizSession
}

func NewQuizService(db *store.SQLiteStore, generator QuizGenerator, notes *NoteService) *QuizService {
	return &QuizService{
		dbStore:     db,
		generator:   generator,
		noteService: notes,
	}
}

// StartQuiz builds the note context and asks the gateway for a fresh quiz,
// replacing any previous session.
func (s *QuizService) StartQuiz(ctx context.Context) (*QuizSession, error) {
	notesContext, err := s.noteService.BuildContext()
	if err != nil {
		return nil, err
	}

	questions, err := s.generator.GenerateQuiz(ctx, notesContext)
	if err != nil {
		return nil, err
	}

	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = -1
	}

	session := &QuizSession{
		ID:        uuid.NewString(),
		Questions: questions,
		Answers:   answers,
		Position:  0,
		State:     QuizStateAnswering,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	return session, nil
}

// Active returns the current session, or ErrNoActiveQuiz.
func (s *QuizService) Active() (*QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoActiveQuiz
	}
	return s.session, nil
}

// Answer records a selection for a question. The latest answer per question
// wins; position follows the question being answered.
func (s *QuizService) Answer(questionIndex, optionIndex int) (*QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoActiveQuiz
	}
	if s.session.State != QuizStateAnswering {
		return nil, ErrQuizFinished
	}
	if questionIndex < 0 || questionIndex >= len(s.session.Questions) {
		return nil, fmt.Errorf("question index %d out of range", questionIndex)
	}
	if optionIndex < 0 || optionIndex >= len(s.session.Questions[questionIndex].Options) {
		return nil, fmt.Errorf("option index %d out of range", optionIndex)
	}

	s.session.Answers[questionIndex] = optionIndex
	s.session.Position = questionIndex
	return s.session, nil
}

// Finish computes the score and appends the quiz to history. A quiz is
// finalized exactly once: finishing again (including after a review pass)
// returns the recorded result without re-scoring or duplicating history.
func (s *QuizService) Finish() (*store.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoActiveQuiz
	}
	if s.session.scored {
		s.session.State = QuizStateFinished
		return s.session.result, nil
	}

	score := 0
	for i, q := range s.session.Questions {
		if s.session.Answers[i] == q.CorrectAnswerIndex {
			score++
		}
	}

	quiz := &store.Quiz{
		ID:        s.session.ID,
		Questions: s.session.Questions,
		Score:     score,
	}
	if err := s.dbStore.SaveQuiz(quiz); err != nil {
		return nil, fmt.Errorf("failed to save finished quiz: %w", err)
	}

	s.session.Score = score
	s.session.State = QuizStateFinished
	s.session.scored = true
	s.session.result = quiz
	return quiz, nil
}

// Review returns a finished session to the answering view at position 0 so
// the user can walk through the questions again. The questions are not
// re-fetched and the recorded score does not change.
func (s *QuizService) Review() (*QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoActiveQuiz
	}
	if s.session.State != QuizStateFinished {
		return nil, fmt.Errorf("quiz is not finished, nothing to review")
	}

	s.session.Position = 0
	s.session.State = QuizStateAnswering
	return s.session, nil
}

// History returns finished quizzes, newest first.
func (s *QuizService) History() ([]store.Quiz, error) {
	return s.dbStore.GetQuizzes()
}
