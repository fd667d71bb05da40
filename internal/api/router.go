package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Note routes
		r.Post("/notes", apiHandler.CreateNoteHandler)
		r.Post("/notes/image", apiHandler.CreateImageNoteHandler)
		r.Get("/notes", apiHandler.ListNotesHandler)
		r.Get("/notes/{noteID}", apiHandler.GetNoteHandler)
		r.Delete("/notes/{noteID}", apiHandler.DeleteNoteHandler)

		// Quiz routes
		r.Post("/quizzes", apiHandler.StartQuizHandler)
		r.Get("/quizzes", apiHandler.QuizHistoryHandler)
		r.Get("/quizzes/active", apiHandler.GetActiveQuizHandler)
		r.Post("/quizzes/active/answers", apiHandler.AnswerQuizHandler)
		r.Post("/quizzes/active/finish", apiHandler.FinishQuizHandler)
		r.Post("/quizzes/active/review", apiHandler.ReviewQuizHandler)

		// Chat routes
		r.Get("/chat/messages", apiHandler.ChatHistoryHandler)
		r.Post("/chat/messages", apiHandler.SendChatMessageHandler)
		r.Delete("/chat/messages", apiHandler.ClearChatHandler)
	})

	return r
}
