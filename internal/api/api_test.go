package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"studymind.io/study-aid/internal/core"
	"studymind.io/study-aid/internal/store"
)

// stubGateway implements the gateway interfaces with canned behavior,
// honoring the insufficient-context precondition like the real one.
type stubGateway struct {
	extractText string
	chunks      []string
}

func (g *stubGateway) GenerateQuiz(_ context.Context, notesContext string) ([]store.Question, error) {
	if len(strings.TrimSpace(notesContext)) < core.MinContextChars {
		return nil, core.ErrInsufficientContext
	}
	questions := make([]store.Question, core.QuizQuestionCount)
	for i := range questions {
		questions[i] = store.Question{
			QuestionText:       "Question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: 0,
		}
	}
	return questions, nil
}

func (g *stubGateway) ExtractText(context.Context, string, []byte) (string, error) {
	return g.extractText, nil
}

func (g *stubGateway) StreamChat(context.Context, string, []store.ChatMessage, string) (core.ChunkStream, error) {
	return &stubStream{chunks: g.chunks}, nil
}

type stubStream struct {
	chunks []string
	pos    int
}

func (s *stubStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// testEnv wires an in-memory store, stub gateway, services, and the router.
func testEnv(t *testing.T, gateway *stubGateway) http.Handler {
	t.Helper()

	dbStore, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	noteService := core.NewNoteService(dbStore, gateway)
	quizService := core.NewQuizService(dbStore, gateway, noteService)
	chatService := core.NewChatService(dbStore, gateway, noteService)

	return NewRouter(NewAPIHandler(noteService, quizService, chatService))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := testEnv(t, &stubGateway{})
	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateGetAndDeleteNote(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodPost, "/api/notes", map[string]string{
		"title":   "Biology",
		"content": "Cells divide by mitosis.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var note store.Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))
	require.NotEmpty(t, note.ID)
	assert.Equal(t, store.NoteKindText, note.Kind)

	w = doJSON(t, router, http.MethodGet, "/api/notes/"+note.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/notes/"+note.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/notes/"+note.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNoteValidation(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodPost, "/api/notes", map[string]string{"title": "", "content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateImageNote(t *testing.T) {
	router := testEnv(t, &stubGateway{extractText: "extracted study notes"})

	w := doJSON(t, router, http.MethodPost, "/api/notes/image", map[string]string{
		"title":     "Scanned page",
		"mime_type": "image/png",
		"data":      base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var note store.Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))
	assert.Equal(t, store.NoteKindImage, note.Kind)
	assert.Equal(t, "extracted study notes", note.Content)
}

func TestCreateImageNoteRejectsBadMime(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodPost, "/api/notes/image", map[string]string{
		"title":     "Scanned page",
		"mime_type": "application/pdf",
		"data":      base64.StdEncoding.EncodeToString([]byte{1}),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuizLifecycle(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodPost, "/api/notes", map[string]string{
		"title":   "A",
		"content": strings.Repeat("x", 60),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/quizzes", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session core.QuizSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.Len(t, session.Questions, 5)

	for i := range session.Questions {
		w = doJSON(t, router, http.MethodPost, "/api/quizzes/active/answers", map[string]int{
			"question_index": i,
			"option_index":   0, // stub's correct answer
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/quizzes/active/finish", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quiz store.Quiz
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quiz))
	assert.Equal(t, 5, quiz.Score)

	w = doJSON(t, router, http.MethodPost, "/api/quizzes/active/review", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/quizzes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []store.Quiz
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestQuizInsufficientContext(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodPost, "/api/notes", map[string]string{
		"title":   "A",
		"content": "hi",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/quizzes", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestQuizActiveNotFound(t *testing.T) {
	router := testEnv(t, &stubGateway{})

	w := doJSON(t, router, http.MethodGet, "/api/quizzes/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/quizzes/active/finish", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatStreamOverSSE(t *testing.T) {
	router := testEnv(t, &stubGateway{chunks: []string{"Hel", "lo"}})

	w := doJSON(t, router, http.MethodPost, "/api/chat/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event: chunk")
	assert.Contains(t, body, `"Hel"`)
	assert.Contains(t, body, `"lo"`)
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"Hello"`)

	// Fragments arrive in order.
	assert.Less(t, strings.Index(body, `"Hel"`), strings.Index(body, `"lo"`))

	// The accumulated conversation is visible afterwards.
	w = doJSON(t, router, http.MethodGet, "/api/chat/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []store.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[1].Text)
}

func TestClearChat(t *testing.T) {
	router := testEnv(t, &stubGateway{chunks: []string{"ok"}})

	w := doJSON(t, router, http.MethodPost, "/api/chat/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/chat/messages", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/chat/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []store.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	assert.Empty(t, messages)
}
