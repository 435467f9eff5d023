package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FetchState represents the lifecycle state of a fetch
type FetchState string

const (
	StateInitialized FetchState = "initialized"
	StateExtracting  FetchState = "extracting"
	StateFetching    FetchState = "fetching"
	StateConverting  FetchState = "converting"
	StateComplete    FetchState = "complete"
	StateFailed      FetchState = "failed"
)

// stateOrder is the forward path; failed is reachable from any non-terminal state
var stateOrder = map[FetchState]int{
	StateInitialized: 0,
	StateExtracting:  1,
	StateFetching:    2,
	StateConverting:  3,
	StateComplete:    4,
}

var stateProgress = map[FetchState]float64{
	StateInitialized: 0,
	StateExtracting:  10,
	StateFetching:    30,
	StateConverting:  90,
	StateComplete:    100,
}

// IsTerminal checks if the state is terminal
func (s FetchState) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether a record in state from may move to state to
func CanTransition(from, to FetchState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	fi, ok := stateOrder[from]
	if !ok {
		return false
	}
	ti, ok := stateOrder[to]
	if !ok {
		return false
	}
	return ti > fi
}

// StatusRecord tracks one fetch from admission to a terminal state
type StatusRecord struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	VideoID     string     `json:"video_id"`
	Quality     Quality    `json:"quality"`
	State       FetchState `json:"state"`
	Progress    float64    `json:"progress"`
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	Size        int64      `json:"size,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewStatusRecord creates a record in the initialized state
func NewStatusRecord(req FetchRequest, now time.Time) *StatusRecord {
	return &StatusRecord{
		ID:        uuid.New().String(),
		URL:       req.URL,
		VideoID:   req.VideoID,
		Quality:   req.Quality,
		State:     StateInitialized,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the record to a later state on the forward path
func (r *StatusRecord) Advance(to FetchState, now time.Time) error {
	if to == StateFailed {
		return fmt.Errorf("use MarkFailed to fail a fetch")
	}
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid transition %s -> %s", r.State, to)
	}
	r.State = to
	r.Progress = stateProgress[to]
	r.UpdatedAt = now
	if to == StateComplete {
		r.CompletedAt = &now
	}
	return nil
}

// MarkCompleted marks the fetch as complete with the produced artifact
func (r *StatusRecord) MarkCompleted(result *FetchResult, now time.Time) error {
	if err := r.Advance(StateComplete, now); err != nil {
		return err
	}
	if result != nil {
		r.Title = result.Title
		r.FileName = result.FileName()
		r.Size = result.Size
	}
	return nil
}

// MarkFailed marks the fetch as failed, keeping the last progress value
func (r *StatusRecord) MarkFailed(err error, now time.Time) error {
	if r.State.IsTerminal() {
		return fmt.Errorf("invalid transition %s -> %s", r.State, StateFailed)
	}
	r.State = StateFailed
	if err != nil {
		r.Error = err.Error()
		r.ErrorKind = KindOf(err)
	}
	r.UpdatedAt = now
	r.CompletedAt = &now
	return nil
}

// IsTerminal checks if the record is in a terminal state
func (r *StatusRecord) IsTerminal() bool {
	return r.State.IsTerminal()
}

// Expired reports whether the record was created more than retention before now
func (r *StatusRecord) Expired(now time.Time, retention time.Duration) bool {
	return retention > 0 && now.Sub(r.CreatedAt) > retention
}
