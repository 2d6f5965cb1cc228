package controller

import (
	"github.com/abhisek/quail/internal/blocks"
)

// Op names one entry of the controller's operation table.
type Op string

const (
	OpLoadDataset      Op = "load_dataset"
	OpStartBlock       Op = "start_block"
	OpPauseBlock       Op = "pause_block"
	OpSaveBlock        Op = "save_block"
	OpOpenBlock        Op = "open_block"
	OpCompleteBlock    Op = "complete_block"
	OpDeleteBlock      Op = "delete_block"
	OpResetBank        Op = "reset_bank"
	OpUpdateUsageStats Op = "update_usage_stats"
	OpSaveHighlight    Op = "save_highlight"
)

// Event is the payload of one operation.
type Event interface {
	Op() Op
}

// LoadDataset loads the bank at Path and reconciles the user's progress.
type LoadDataset struct {
	Path string
	// Name labels the bank in the event log. Defaults to the directory name.
	Name string
}

// StartBlock creates a block over QuestionIDs.
type StartBlock struct {
	QuestionIDs       []string
	Pool              blocks.Label
	TagsChosen        string
	AllSubtagsEnabled bool
	Timed             bool
	TimePerQuestion   int
	ShowAnswers       bool
}

// PauseBlock stores the exam view's state and persists both progress copies.
type PauseBlock struct {
	BlockID string
	State   blocks.State
}

// SaveBlock stores the exam view's state and persists the user record.
type SaveBlock struct {
	BlockID string
	State   blocks.State
}

// OpenBlock marks a block as the one to show.
type OpenBlock struct {
	BlockID string
}

// CompleteBlock grades and closes a block.
type CompleteBlock struct {
	BlockID string
	State   blocks.State
}

// DeleteBlock erases a block and returns its questions to the unused pool.
type DeleteBlock struct {
	BlockID string
}

// ResetBank discards all progress on the loaded bank after confirmation.
type ResetBank struct{}

// UpdateUsageStats merges Stats into the stored usage statistics.
type UpdateUsageStats struct {
	Stats map[string]any
}

// SaveHighlight stores the highlight state of one question.
type SaveHighlight struct {
	QuestionID string
	Data       string
}

func (LoadDataset) Op() Op      { return OpLoadDataset }
func (StartBlock) Op() Op       { return OpStartBlock }
func (PauseBlock) Op() Op       { return OpPauseBlock }
func (SaveBlock) Op() Op        { return OpSaveBlock }
func (OpenBlock) Op() Op        { return OpOpenBlock }
func (CompleteBlock) Op() Op    { return OpCompleteBlock }
func (DeleteBlock) Op() Op      { return OpDeleteBlock }
func (ResetBank) Op() Op        { return OpResetBank }
func (UpdateUsageStats) Op() Op { return OpUpdateUsageStats }
func (SaveHighlight) Op() Op    { return OpSaveHighlight }
