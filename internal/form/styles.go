package form

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1).
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	labelStyle = lipgloss.NewStyle().
			Width(labelWidth).
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

	focusedLabelStyle = labelStyle.
				Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})

	selectedStatusStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
)

// labelWidth is the column width reserved for field labels.
const labelWidth = 22

// columnWidths are the table column widths in records mode, in column order.
var columnWidths = [...]int{19, 14, 12, 4, 10, 24, 6, 11, 12, 24}
