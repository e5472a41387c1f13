package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinContentLength  = 10
	MaxContentLength  = 4000
	LongContentLength = 2000
	MinWordCount      = 3
	PreviewLength     = 100
)

// Content is a saved snippet. Embedding is only populated on writes; reads
// never load it back.
type Content struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ServerID  string    `json:"server_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preview shortens Text for replies.
func (c Content) Preview() string {
	return Preview(c.Text)
}

func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength-3]) + "..."
}

// Match is one nearest-neighbour hit. Similarity is cosine similarity in
// [0, 1] as computed by the store.
type Match struct {
	Content    Content `json:"content"`
	Similarity float64 `json:"similarity"`
}

func (m Match) Percentage() float64 {
	return m.Similarity * 100
}

type Validation struct {
	Length    int
	WordCount int
	Errors    []string
	Warnings  []string
}

func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

// ValidateText applies the save/edit rules to a snippet.
func ValidateText(text string) Validation {
	v := Validation{
		Length:    utf8.RuneCountInString(text),
		WordCount: len(strings.Fields(text)),
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinContentLength {
		v.Errors = append(v.Errors, "Content must be at least 10 characters long")
	}
	if v.Length > MaxContentLength {
		v.Errors = append(v.Errors, "Content cannot exceed 4000 characters")
	}
	if v.Length > LongContentLength {
		v.Warnings = append(v.Warnings, "Very long content may affect search performance")
	}
	if v.WordCount < MinWordCount {
		v.Errors = append(v.Errors, "Content must contain at least 3 words")
	}
	return v
}

// Event payloads published to the activity feed.
type Event struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	ServerID string `json:"server_id"`
	Preview  string `json:"preview,omitempty"`
}

const (
	EventSaved   = "content.saved"
	EventEdited  = "content.edited"
	EventDeleted = "content.deleted"
)
