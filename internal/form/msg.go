// Package form implements the terminal intake form: a single screen of
// contact fields that submits to the record store, plus a records mode that
// lists the stored collection and exports it to a CSV file.
package form

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/fiche/internal/contact"
	"github.com/smileynet/fiche/internal/store"
)

// Mode represents the current form view mode.
type Mode int

const (
	ModeForm    Mode = iota // Editing the intake fields.
	ModeRecords             // Browsing the stored records.
)

// RecordStore is the subset of *store.Store the form drives.
type RecordStore interface {
	Load() (store.Collection, error)
	Submit(contact.Candidate) (store.Confirmation, error)
	ExportSnapshot() (store.Snapshot, error)
}

// SubmitDoneMsg carries the outcome of a submission.
type SubmitDoneMsg struct {
	Confirmation store.Confirmation
	Err          error
}

// RecordsLoadedMsg carries a freshly loaded collection.
type RecordsLoadedMsg struct {
	Collection store.Collection
	Err        error
}

// ExportDoneMsg carries the outcome of writing an export file.
type ExportDoneMsg struct {
	Path  string
	Count int
	Err   error
}

func submitCmd(s RecordStore, c contact.Candidate) tea.Cmd {
	return func() tea.Msg {
		conf, err := s.Submit(c)
		return SubmitDoneMsg{Confirmation: conf, Err: err}
	}
}

func loadCmd(s RecordStore) tea.Cmd {
	return func() tea.Msg {
		col, err := s.Load()
		return RecordsLoadedMsg{Collection: col, Err: err}
	}
}

func exportCmd(s RecordStore, dir string) tea.Cmd {
	return func() tea.Msg {
		snap, err := s.ExportSnapshot()
		if err != nil {
			return ExportDoneMsg{Err: err}
		}
		path, err := snap.Save(dir)
		return ExportDoneMsg{Path: path, Count: snap.Count, Err: err}
	}
}
