package domain

import "time"

// ChatMode selects how a chat turn is answered.
type ChatMode string

const (
	// ChatModeStaged searches the syllabus first and falls back with learning.
	ChatModeStaged ChatMode = "staged"
	// ChatModeOneShot uses the single thresholded pipeline without learning.
	ChatModeOneShot ChatMode = "oneshot"
)

// IsValid reports whether m is a known mode.
func (m ChatMode) IsValid() bool {
	return m == ChatModeStaged || m == ChatModeOneShot
}

// Language codes understood by the chat flow.
const (
	LanguageEnglish    = "en"
	LanguageVietnamese = "vi"
)

// LanguageName maps a language code to the name used in translation prompts.
func LanguageName(code string) string {
	switch code {
	case LanguageVietnamese:
		return "Vietnamese"
	default:
		return "English"
	}
}

// GreetingMessage opens every conversation.
const GreetingMessage = "Xin chào! Bạn cần mình hỗ trợ tra cứu thông tin gì?"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of a conversation history.
type ChatMessage struct {
	Role      ChatRole   `json:"role"`
	Content   string     `json:"content"`
	Sources   []Metadata `json:"sources,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewChatMessage creates a message stamped with the current time.
func NewChatMessage(role ChatRole, content string, sources []Metadata) *ChatMessage {
	return &ChatMessage{
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
}

// ChatResponse is the outcome of a single chat turn.
type ChatResponse struct {
	SessionID string        `json:"session_id"`
	Answer    string        `json:"answer"`
	Sources   []Metadata    `json:"sources"`
	Groups    []SourceGroup `json:"groups,omitempty"`
	Language  string        `json:"language"`
	Path      AnswerPath    `json:"path"`
}
