package model

import (
	"encoding/json"
	"time"
)

// Citation links a generated answer back to the document that supported it.
// Label is the human-readable source name shown to the user.
type Citation struct {
	DocumentID string `json:"document_id"`
	Label      string `json:"label"`
}

// ChatMessage is one turn of a conversation. Citations are stored as a JSON
// array of Citation for portability across the cache and MySQL.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"session_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Citations string    `gorm:"type:text" json:"citations,omitempty"` // JSON array of Citation
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CitationList returns the parsed citations; empty on parse error.
func (m *ChatMessage) CitationList() []Citation {
	if m.Citations == "" {
		return nil
	}
	var list []Citation
	_ = json.Unmarshal([]byte(m.Citations), &list)
	return list
}

// SetCitations stores the citations as JSON.
func (m *ChatMessage) SetCitations(list []Citation) {
	if len(list) == 0 {
		m.Citations = ""
		return
	}
	b, _ := json.Marshal(list)
	m.Citations = string(b)
}

// ChatMessageView is the API shape of a message: citations flattened to
// ordered human-readable labels.
type ChatMessageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Citations []string  `json:"citations"`
	CreatedAt time.Time `json:"created_at"`
}

// View converts the message for serialization back to the UI.
func (m *ChatMessage) View() ChatMessageView {
	view := ChatMessageView{
		Role:      m.Role,
		Content:   m.Content,
		Citations: []string{},
		CreatedAt: m.CreatedAt,
	}
	for _, c := range m.CitationList() {
		view.Citations = append(view.Citations, c.Label)
	}
	return view
}
