package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"studymind.io/study-aid/internal/core"
	"studymind.io/study-aid/internal/store"
)

type APIHandler struct {
	noteService *core.NoteService
	quizService *core.QuizService
	chatService *core.ChatService
}

func NewAPIHandler(notes *core.NoteService, quizzes *core.QuizService, chat *core.ChatService) *APIHandler {
	return &APIHandler{
		noteService: notes,
		quizService: quizzes,
		chatService: chat,
	}
}

// Note handlers

func (h *APIHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	note, err := h.noteService.CreateTextNote(req.Title, req.Content)
	if err != nil {
		log.Printf("Error creating note: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to create note"))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *APIHandler) CreateImageNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateImageNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid base64 image data"))
		return
	}

	note, err := h.noteService.CreateImageNote(r.Context(), req.Title, req.MimeType, imageData)
	if err != nil {
		log.Printf("Error creating image note: %v", err)
		writeJSON(w, http.StatusBadGateway, errorBody("Failed to extract text from image"))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *APIHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	notes, err := h.noteService.GetNotes()
	if err != nil {
		log.Printf("Error listing notes: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to list notes"))
		return
	}
	if notes == nil {
		notes = []store.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *APIHandler) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")

	note, err := h.noteService.GetNote(noteID)
	if err != nil {
		log.Printf("Error getting note %s: %v", noteID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to get note"))
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, errorBody("Note not found"))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *APIHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")

	if err := h.noteService.DeleteNote(noteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Note not found"))
			return
		}
		log.Printf("Error deleting note %s: %v", noteID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to delete note"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quiz handlers

func (h *APIHandler) StartQuizHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.quizService.StartQuiz(r.Context())
	if err != nil {
		if errors.Is(err, core.ErrInsufficientContext) {
			writeJSON(w, http.StatusUnprocessableEntity,
				errorBody(fmt.Sprintf("Not enough note content to generate a quiz. Add at least %d characters of notes first.", core.MinContextChars)))
			return
		}
		log.Printf("Error generating quiz: %v", err)
		writeJSON(w, http.StatusBadGateway, errorBody("AI failed to generate quiz questions"))
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) GetActiveQuizHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.quizService.Active()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("No active quiz"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) AnswerQuizHandler(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	session, err := h.quizService.Answer(req.QuestionIndex, req.OptionIndex)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoActiveQuiz):
			writeJSON(w, http.StatusNotFound, errorBody("No active quiz"))
		case errors.Is(err, core.ErrQuizFinished):
			writeJSON(w, http.StatusConflict, errorBody("Quiz is already finished"))
		default:
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) FinishQuizHandler(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.quizService.Finish()
	if err != nil {
		if errors.Is(err, core.ErrNoActiveQuiz) {
			writeJSON(w, http.StatusNotFound, errorBody("No active quiz"))
			return
		}
		log.Printf("Error finishing quiz: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to finish quiz"))
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *APIHandler) ReviewQuizHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.quizService.Review()
	if err != nil {
		if errors.Is(err, core.ErrNoActiveQuiz) {
			writeJSON(w, http.StatusNotFound, errorBody("No active quiz"))
			return
		}
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) QuizHistoryHandler(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizService.History()
	if err != nil {
		log.Printf("Error listing quiz history: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to list quiz history"))
		return
	}
	if quizzes == nil {
		quizzes = []store.Quiz{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

// Chat handlers

func (h *APIHandler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatService.History()
	if err != nil {
		log.Printf("Error listing chat messages: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to list chat messages"))
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) ClearChatHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.Clear(); err != nil {
		log.Printf("Error clearing chat: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to clear chat"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendChatMessageHandler streams the model reply over Server-Sent Events.
// Each fragment is emitted as a "chunk" event in arrival order, followed by a
// final "done" event carrying the complete message. A broken stream ends with
// an "error" event; the partial text already emitted stays applied.
func (h *APIHandler) SendChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	modelMsg, err := h.chatService.SendMessage(r.Context(), req.Text, func(chunk string) {
		writeSSEEvent(w, "chunk", map[string]string{"text": chunk})
		flusher.Flush()
	})
	if err != nil {
		log.Printf("Error streaming chat message: %v", err)
		writeSSEEvent(w, "error", errorBody("The assistant response was interrupted"))
		flusher.Flush()
		return
	}

	writeSSEEvent(w, "done", modelMsg)
	flusher.Flush()
}

func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal SSE payload: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
