package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// An in-memory database lives and dies with a single connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS notes (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT NOT NULL,
        content TEXT NOT NULL,
        kind TEXT NOT NULL CHECK (kind IN ('text', 'image')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS quizzes (
        id TEXT PRIMARY KEY, -- UUID
        questions_json TEXT NOT NULL, -- Storing as JSON array of questions
        score INTEGER NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chat_messages (
        id TEXT PRIMARY KEY, -- UUID
        role TEXT NOT NULL CHECK (role IN ('user', 'model')),
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Note methods

func (s *SQLiteStore) CreateNote(note *Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO notes (id, title, content, kind, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare note insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(note.ID, note.Title, note.Content, note.Kind, note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute note insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNoteByID(noteID string) (*Note, error) {
	var note Note
	err := s.db.QueryRow("SELECT id, title, content, kind, created_at FROM notes WHERE id = ?", noteID).
		Scan(&note.ID, &note.Title, &note.Content, &note.Kind, &note.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

// GetNotes returns all notes in insertion order.
func (s *SQLiteStore) GetNotes() ([]Note, error) {
	rows, err := s.db.Query("SELECT id, title, content, kind, created_at FROM notes ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.Kind, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// UpdateNoteContent fills in note content after a completed image extraction.
// This is the only mutation a note sees after creation.
func (s *SQLiteStore) UpdateNoteContent(noteID string, content string) error {
	stmt, err := s.db.Prepare("UPDATE notes SET content = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare note content update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(content, noteID)
	if err != nil {
		return fmt.Errorf("failed to execute note content update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteNote(noteID string) error {
	res, err := s.db.Exec("DELETE FROM notes WHERE id = ?", noteID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
	}
	return nil
}

// Quiz methods

func (s *SQLiteStore) SaveQuiz(quiz *Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	quiz.CreatedAt = time.Now()

	questionsBytes, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz questions: %w", err)
	}
	quiz.QuestionsJSON = string(questionsBytes)

	stmt, err := s.db.Prepare("INSERT INTO quizzes (id, questions_json, score, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare quiz insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(quiz.ID, quiz.QuestionsJSON, quiz.Score, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute quiz insert: %w", err)
	}
	return nil
}

// GetQuizzes returns finished quizzes, newest first.
func (s *SQLiteStore) GetQuizzes() ([]Quiz, error) {
	rows, err := s.db.Query("SELECT id, questions_json, score, created_at FROM quizzes ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []Quiz
	for rows.Next() {
		var quiz Quiz
		if err := rows.Scan(&quiz.ID, &quiz.QuestionsJSON, &quiz.Score, &quiz.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz row: %w", err)
		}
		if err := json.Unmarshal([]byte(quiz.QuestionsJSON), &quiz.Questions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal questions for quiz %s: %w", quiz.ID, err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// Chat message methods

// UpsertChatMessage inserts a message, or replaces its text in place when the
// id already exists. The original position in the conversation is preserved
// (the conflict path is an UPDATE, so the rowid does not move). This is what
// lets a model reply grow chunk by chunk under a single stable id.
func (s *SQLiteStore) UpsertChatMessage(msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	stmt, err := s.db.Prepare(`
        INSERT INTO chat_messages (id, role, content, created_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET content = excluded.content
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare message upsert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.Role, msg.Text, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute message upsert: %w", err)
	}
	return nil
}

// GetChatMessages returns the conversation in order.
func (s *SQLiteStore) GetChatMessages() ([]ChatMessage, error) {
	rows, err := s.db.Query("SELECT id, role, content, created_at FROM chat_messages ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) ClearChatMessages() error {
	if _, err := s.db.Exec("DELETE FROM chat_messages"); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}
	return nil
}
