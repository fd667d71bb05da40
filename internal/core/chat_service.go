package core

import (
	"context"
	"fmt"
	"io"
	"log"

	"studymind.io/study-aid/internal/store"
)

// streamErrorSuffix is appended to a partially streamed reply when the stream
// breaks mid-way. The partial text already applied stays visible.
const streamErrorSuffix = "\n\nError: the assistant response was interrupted. Please try again."

type ChatService struct {
	dbStore     *store.SQLiteStore
	streamer    ChatStreamer
	noteService *NoteService
}

func NewChatService(db *store.SQLiteStore, streamer ChatStreamer, notes *NoteService) *ChatService {
	return &ChatService{
		dbStore:     db,
		streamer:    streamer,
		noteService: notes,
	}
}

func (s *ChatService) History() ([]store.ChatMessage, error) {
	return s.dbStore.GetChatMessages()
}

func (s *ChatService) Clear() error {
	return s.dbStore.ClearChatMessages()
}

// SendMessage stores the user turn, streams the model reply, and applies each
// fragment in arrival order to a single model message under a stable id. The
// message is upserted after every fragment, so readers always see the latest
// accumulated text. onChunk (optional) forwards each raw fragment to the
// transport as it arrives.
//
// The stream is one-shot: it is consumed to completion or abandoned on error.
// On a mid-stream failure the partial text is kept and a generic error line is
// appended to the same message.
func (s *ChatService) SendMessage(ctx context.Context, userText string, onChunk func(chunk string)) (*store.ChatMessage, error) {
	history, err := s.dbStore.GetChatMessages()
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	userMsg := &store.ChatMessage{
		Role: store.RoleUser,
		Text: userText,
	}
	if err := s.dbStore.UpsertChatMessage(userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	notesContext, err := s.noteService.BuildContext()
	if err != nil {
		return nil, err
	}

	stream, err := s.streamer.StreamChat(ctx, notesContext, history, userText)
	if err != nil {
		return nil, fmt.Errorf("failed to start chat stream: %w", err)
	}

	modelMsg := &store.ChatMessage{
		Role: store.RoleModel,
		Text: "",
	}

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Chat stream broke after %d chars: %v", len(modelMsg.Text), err)
			modelMsg.Text += streamErrorSuffix
			if upsertErr := s.dbStore.UpsertChatMessage(modelMsg); upsertErr != nil {
				log.Printf("Failed to store interrupted model message: %v", upsertErr)
			}
			return modelMsg, fmt.Errorf("chat stream interrupted: %w", err)
		}
		if chunk == "" {
			continue
		}

		modelMsg.Text += chunk
		if err := s.dbStore.UpsertChatMessage(modelMsg); err != nil {
			return nil, fmt.Errorf("failed to store model message: %w", err)
		}
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	if modelMsg.Text == "" {
		// The model produced nothing; keep the conversation coherent.
		modelMsg.Text = "I'm sorry, I couldn't generate a response at this time. Please try again."
		if err := s.dbStore.UpsertChatMessage(modelMsg); err != nil {
			return nil, fmt.Errorf("failed to store model message: %w", err)
		}
	}

	return modelMsg, nil
}
