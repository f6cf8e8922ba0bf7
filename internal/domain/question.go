package domain

// KeyPrefix namespaces every key bookqa writes to the store.
const KeyPrefix = "bookqa:"

// Column limits carried over from the questions table.
const (
	MaxQuestionLen = 140
	MaxAnswerLen   = 1000
)

// Question is a cached answer keyed by its normalized question text.
type Question struct {
	ID        string
	Question  string
	Context   string
	Answer    string
	AskCount  int
	CreatedAt int64 // unix millis
	UpdatedAt int64 // unix millis
}
