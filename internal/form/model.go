package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/fiche/internal/contact"
)

// field identifies a form field in focus order.
type field int

const (
	fieldLastName field = iota
	fieldFirstName
	fieldAge
	fieldBirthDate
	fieldAddress
	fieldPostalCode
	fieldPhone
	fieldStatus
	fieldNotes
	fieldCount
)

// textFields is the number of single-line inputs. They come first in focus order.
const textFields = int(fieldStatus)

const (
	inputWidth  = 40
	notesHeight = 3
	// recordsChrome is the number of lines around the table in records mode.
	recordsChrome = 6
)

var fieldLabels = [fieldCount]string{
	fieldLastName:   "NOM",
	fieldFirstName:  "PRÉNOM",
	fieldAge:        "ÂGE",
	fieldBirthDate:  "DATE DE NAISSANCE",
	fieldAddress:    "ADRESSE",
	fieldPostalCode: "CODE POSTAL",
	fieldPhone:      "TÉLÉPHONE",
	fieldStatus:     "INSCRIT FT / ML ?",
	fieldNotes:      "OBSERVATIONS",
}

var placeholders = [textFields]string{
	fieldLastName:   "obligatoire",
	fieldAge:        fmt.Sprintf("%d-%d", contact.MinAge, contact.MaxAge),
	fieldBirthDate:  "AAAA-MM-JJ",
	fieldPostalCode: "75011",
	fieldPhone:      "obligatoire",
}

// sectionBefore maps the first field of each section to its heading.
var sectionBefore = map[field]string{
	fieldLastName: "Informations Personnelles",
	fieldAddress:  "Coordonnées",
	fieldStatus:   "Situation",
}

type flash struct {
	text string
	err  bool
}

// Model is the Bubble Tea model for the intake form.
type Model struct {
	store     RecordStore
	exportDir string

	mode   Mode
	focus  field
	inputs [textFields]textinput.Model
	notes  textarea.Model
	status contact.Status
	busy   bool

	table   table.Model
	records int

	flash    flash
	width    int
	height   int
	help     help.Model
	formKeys formKeys
	recKeys  recordsKeys
}

// NewModel creates a form Model in form mode with the last name focused.
// Exports triggered from records mode are written to exportDir.
func NewModel(s RecordStore, exportDir string) Model {
	m := Model{
		store:     s,
		exportDir: exportDir,
		mode:      ModeForm,
		status:    contact.StatusYes,
		help:      help.New(),
		formKeys:  FormKeyMap(),
		recKeys:   RecordsKeyMap(),
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[i]
		ti.Width = inputWidth
		m.inputs[i] = ti
	}
	m.inputs[fieldAge].CharLimit = 3
	m.inputs[fieldBirthDate].CharLimit = len(contact.DateLayout)
	m.inputs[fieldPostalCode].CharLimit = contact.PostalCodeMaxLen

	m.notes = textarea.New()
	m.notes.ShowLineNumbers = false
	m.notes.Prompt = ""
	m.notes.SetWidth(inputWidth)
	m.notes.SetHeight(notesHeight)

	m.table = table.New(
		table.WithColumns(tableColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	m.setFocus(fieldLastName)
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case SubmitDoneMsg:
		return m.handleSubmitDone(msg)

	case RecordsLoadedMsg:
		if msg.Err != nil {
			m.flash = flash{text: "Lecture impossible : " + msg.Err.Error(), err: true}
			m.table.SetRows(nil)
			m.records = 0
			return m, nil
		}
		m.table.SetRows(tableRows(msg.Collection.Records))
		m.records = msg.Collection.Len()
		return m, nil

	case ExportDoneMsg:
		if msg.Err != nil {
			m.flash = flash{text: "Export impossible : " + msg.Err.Error(), err: true}
		} else {
			m.flash = flash{text: fmt.Sprintf("%d fiche(s) exportée(s) vers %s", msg.Count, msg.Path)}
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeRecords {
			return m.handleRecordsKey(msg)
		}
		return m.handleFormKey(msg)
	}

	return m.updateFocused(msg)
}

// handleFormKey processes keys in form mode.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.formKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.formKeys.Submit):
		return m.submit()
	case key.Matches(msg, m.formKeys.Records):
		m.mode = ModeRecords
		m.flash = flash{}
		return m, loadCmd(m.store)
	case key.Matches(msg, m.formKeys.Next):
		cmd := m.setFocus(m.focus + 1)
		return m, cmd
	case key.Matches(msg, m.formKeys.Prev):
		cmd := m.setFocus(m.focus - 1)
		return m, cmd
	}

	if m.focus == fieldStatus {
		switch {
		case key.Matches(msg, m.formKeys.StatusPrev):
			m.status = m.status.Prev()
		case key.Matches(msg, m.formKeys.StatusNext):
			m.status = m.status.Next()
		case msg.Type == tea.KeyEnter:
			cmd := m.setFocus(m.focus + 1)
			return m, cmd
		}
		return m, nil
	}
	if msg.Type == tea.KeyEnter && m.focus != fieldNotes {
		cmd := m.setFocus(m.focus + 1)
		return m, cmd
	}
	return m.updateFocused(msg)
}

// handleRecordsKey processes keys in records mode.
func (m Model) handleRecordsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.recKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.recKeys.Back):
		m.mode = ModeForm
		m.flash = flash{}
		cmd := m.setFocus(m.focus)
		return m, cmd
	case key.Matches(msg, m.recKeys.Refresh):
		return m, loadCmd(m.store)
	case key.Matches(msg, m.recKeys.Export):
		return m, exportCmd(m.store, m.exportDir)
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// updateFocused forwards msg to the focused input in form mode.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.mode != ModeForm {
		return m, nil
	}
	var cmd tea.Cmd
	switch {
	case int(m.focus) < textFields:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case m.focus == fieldNotes:
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

// submit parses the fields and hands the candidate to the store.
// Constraint violations are shown without calling the store.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	c, err := m.input().Parse()
	if err != nil {
		m.flash = flash{text: err.Error(), err: true}
		return m, nil
	}
	m.busy = true
	m.flash = flash{}
	return m, submitCmd(m.store, c)
}

func (m Model) handleSubmitDone(msg SubmitDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.Err != nil {
		if errors.Is(msg.Err, contact.ErrValidation) {
			m.flash = flash{text: contact.RequiredMessage, err: true}
		} else {
			m.flash = flash{text: "Échec de l'enregistrement : " + msg.Err.Error(), err: true}
		}
		return m, nil
	}
	m.flash = flash{text: msg.Confirmation.Message()}
	cmd := m.reset()
	return m, cmd
}

// input collects the raw field values.
func (m Model) input() contact.Input {
	return contact.Input{
		LastName:   m.inputs[fieldLastName].Value(),
		FirstName:  m.inputs[fieldFirstName].Value(),
		Age:        m.inputs[fieldAge].Value(),
		BirthDate:  m.inputs[fieldBirthDate].Value(),
		Address:    m.inputs[fieldAddress].Value(),
		PostalCode: m.inputs[fieldPostalCode].Value(),
		Status:     string(m.status),
		Phone:      m.inputs[fieldPhone].Value(),
		Notes:      m.notes.Value(),
	}
}

// reset clears every field and focuses the last name.
func (m *Model) reset() tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.notes.Reset()
	m.status = contact.StatusYes
	return m.setFocus(fieldLastName)
}

// setFocus moves focus to f, wrapping at both ends.
func (m *Model) setFocus(f field) tea.Cmd {
	f = (f%fieldCount + fieldCount) % fieldCount
	m.focus = f
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.notes.Blur()
	switch {
	case int(f) < textFields:
		return m.inputs[f].Focus()
	case f == fieldNotes:
		return m.notes.Focus()
	}
	return nil
}

// tableHeight returns the usable table height in records mode.
func (m Model) tableHeight() int {
	h := m.height - recordsChrome
	if h < 3 {
		return 3
	}
	return h
}

// View renders the current mode with the flash line and help bar.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📋 Fiche Contact - Proximité"))
	b.WriteString("\n")

	var keys help.KeyMap = m.formKeys
	if m.mode == ModeRecords {
		b.WriteString(m.viewRecords())
		keys = m.recKeys
	} else {
		b.WriteString(m.viewForm())
	}

	if m.flash.text != "" {
		style := successStyle
		if m.flash.err {
			style = errorStyle
		}
		b.WriteString("\n\n")
		b.WriteString(style.Render(m.flash.text))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) viewForm() string {
	var b strings.Builder
	for f := field(0); f < fieldCount; f++ {
		if heading, ok := sectionBefore[f]; ok {
			b.WriteString(sectionStyle.Render(heading))
			b.WriteString("\n")
		}
		label := labelStyle
		if f == m.focus {
			label = focusedLabelStyle
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label.Render(fieldLabels[f]), m.viewField(f)))
		b.WriteString("\n")
	}
	if m.busy {
		b.WriteString(dimStyle.Render("Enregistrement…"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewField(f field) string {
	switch {
	case int(f) < textFields:
		return m.inputs[f].View()
	case f == fieldStatus:
		return m.viewStatus()
	default:
		return m.notes.View()
	}
}

func (m Model) viewStatus() string {
	opts := contact.Statuses()
	parts := make([]string, 0, len(opts))
	for _, s := range opts {
		if s == m.status {
			parts = append(parts, selectedStatusStyle.Render("(•) "+string(s)))
		} else {
			parts = append(parts, dimStyle.Render("( ) "+string(s)))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewRecords() string {
	heading := sectionStyle.Render(fmt.Sprintf("Données enregistrées (%d)", m.records))
	if m.records == 0 {
		return heading + "\n" + dimStyle.Render("Aucune fiche enregistrée.")
	}
	return heading + "\n" + m.table.View()
}

func tableColumns() []table.Column {
	names := contact.Columns()
	cols := make([]table.Column, len(names))
	for i, name := range names {
		cols[i] = table.Column{Title: name, Width: columnWidths[i]}
	}
	return cols
}

// tableRows flattens records into table rows. Newlines in a cell are folded
// to spaces so each record stays on one line.
func tableRows(records []contact.Record) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		vals := r.Values()
		for j, v := range vals {
			vals[j] = strings.ReplaceAll(v, "\n", " ")
		}
		rows[i] = table.Row(vals)
	}
	return rows
}
