package store

import "time"

// Note kinds.
const (
	NoteKindText  = "text"
	NoteKindImage = "image"
)

// Chat message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Note struct {
	ID        string    `json:"id"` // Using UUID for external ID
	Title     string    `json:"title"`
	Content   string    `json:"content"` // Empty only while an image extraction is in flight
	Kind      string    `json:"kind"`    // "text" or "image"
	CreatedAt time.Time `json:"created_at"`
}

type Question struct {
	QuestionText       string   `json:"question"`
	Options            []string `json:"options"` // Always exactly 4
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

type Quiz struct {
	ID            string     `json:"id"` // Using UUID for external ID
	Questions     []Question `json:"questions"`
	Score         int        `json:"score"`
	CreatedAt     time.Time  `json:"created_at"`
	QuestionsJSON string     `json:"-"` // Store as JSON string for DB
}

type ChatMessage struct {
	ID        string    `json:"id"`   // Using UUID for external ID
	Role      string    `json:"role"` // "user" or "model"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
