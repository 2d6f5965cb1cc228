// Package dataset loads a question bank directory: the question index,
// the tag taxonomy, answer choices and the opaque groups/panes files.
package dataset

import "encoding/json"

// File names inside a question bank directory.
const (
	IndexFile    = "index.json"
	TagNamesFile = "tagnames.json"
	ChoicesFile  = "choices.json"
	GroupsFile   = "groups.json"
	PanesFile    = "panes.json"

	// LegacyProgressFile is the whole-bank progress snapshot written next to
	// the dataset. Per-user records supersede it but it is still maintained.
	LegacyProgressFile = "progress.json"
)

// Taxonomy is the ordered list of tag dimension names.
type Taxonomy []string

// Len returns the number of dimensions.
func (t Taxonomy) Len() int { return len(t) }

// Question is one multiple-choice item. Immutable once loaded.
type Question struct {
	ID string
	// Classification holds one tag value per taxonomy dimension.
	Classification []string
	Options        []string
	Correct        string
}

// Bank is a loaded question bank.
type Bank struct {
	Path     string
	Taxonomy Taxonomy
	// Order lists question ids in index.json order.
	Order     []string
	Questions map[string]*Question
	Groups    json.RawMessage
	Panes     json.RawMessage
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int { return len(b.Order) }

// Question returns the question with the given id.
func (b *Bank) Question(id string) (*Question, bool) {
	q, ok := b.Questions[id]
	return q, ok
}

// IsCorrect reports whether answer is the correct option for question id.
// Unknown questions and blank answers are never correct.
func (b *Bank) IsCorrect(id, answer string) bool {
	q, ok := b.Questions[id]
	if !ok || answer == "" || q.Correct == "" {
		return false
	}
	return q.Correct == answer
}
