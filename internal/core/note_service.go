package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"studymind.io/study-aid/internal/store"
)

type NoteService struct {
	dbStore   *store.SQLiteStore
	extractor TextExtractor
}

func NewNoteService(db *store.SQLiteStore, extractor TextExtractor) *NoteService {
	return &NoteService{
		dbStore:   db,
		extractor: extractor,
	}
}

func (s *NoteService) CreateTextNote(title, content string) (*store.Note, error) {
	note := &store.Note{
		Title:   title,
		Content: content,
		Kind:    store.NoteKindText,
	}
	if err := s.dbStore.CreateNote(note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// CreateImageNote inserts a placeholder note, runs text extraction, then fills
// in the content. Content is empty only while the extraction is in flight; a
// failed extraction removes the placeholder again.
func (s *NoteService) CreateImageNote(ctx context.Context, title, mimeType string, imageData []byte) (*store.Note, error) {
	note := &store.Note{
		Title:   title,
		Content: "",
		Kind:    store.NoteKindImage,
	}
	if err := s.dbStore.CreateNote(note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	text, err := s.extractor.ExtractText(ctx, mimeType, imageData)
	if err != nil {
		log.Printf("Text extraction failed for note %s: %v", note.ID, err)
		if delErr := s.dbStore.DeleteNote(note.ID); delErr != nil {
			log.Printf("Failed to remove placeholder note %s after extraction failure: %v", note.ID, delErr)
		}
		return nil, fmt.Errorf("failed to extract text from image: %w", err)
	}

	if err := s.dbStore.UpdateNoteContent(note.ID, text); err != nil {
		return nil, fmt.Errorf("failed to store extracted text: %w", err)
	}
	note.Content = text
	return note, nil
}

func (s *NoteService) GetNotes() ([]store.Note, error) {
	return s.dbStore.GetNotes()
}

func (s *NoteService) GetNote(noteID string) (*store.Note, error) {
	return s.dbStore.GetNoteByID(noteID)
}

func (s *NoteService) DeleteNote(noteID string) error {
	return s.dbStore.DeleteNote(noteID)
}

// BuildContext concatenates every note's title and content into the single
// context blob handed to the gateway for quiz generation and chat grounding.
func (s *NoteService) BuildContext() (string, error) {
	notes, err := s.dbStore.GetNotes()
	if err != nil {
		return "", fmt.Errorf("failed to load notes for context: %w", err)
	}

	var contextBuilder strings.Builder
	for _, note := range notes {
		contextBuilder.WriteString(note.Title)
		contextBuilder.WriteString("\n")
		contextBuilder.WriteString(note.Content)
		contextBuilder.WriteString("\n\n")
	}
	return strings.TrimSpace(contextBuilder.String()), nil
}
