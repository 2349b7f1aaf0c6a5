package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour scheme of a Frame.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is green on the terminal default.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles are the lipgloss styles a Frame draws with.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles derives Styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is a labelled block of a Frame. Content is called on every render.
type Section struct {
	Label   string
	Content func() []string
}

// Frame is a bordered screen with a title line, stacked sections and a help
// line under the border.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the frame into width columns and height rows. Sections share
// the rows evenly and show the tail of their content.
func (f Frame) Render(width, height int) string {
	if width < 8 || height < 6 {
		return "Loading..."
	}
	bc := f.Styles.Border
	inner := width - 4

	lines := []string{bc.Render("╭" + strings.Repeat("─", width-2) + "╮")}

	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	gap := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines,
		bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", gap)+" "+bc.Render("│"),
		bc.Render("│")+strings.Repeat(" ", width-2)+bc.Render("│"),
	)

	n := max(len(f.Sections), 1)
	rows := max((height-5-n)/n, 2)
	for _, sec := range f.Sections {
		lines = append(lines, f.section(sec, rows, width, inner)...)
	}

	lines = append(lines,
		bc.Render("╰"+strings.Repeat("─", width-2)+"╯"),
		f.Styles.Help.Render(f.Help),
	)
	return strings.Join(lines, "\n")
}

func (f Frame) section(sec Section, rows, width, inner int) []string {
	bc := f.Styles.Border
	label := f.Styles.Label.Render(sec.Label)
	fill := max(0, width-3-lipgloss.Width(label))
	out := []string{bc.Render("├─") + label + bc.Render(strings.Repeat("─", fill)+"┤")}

	var content []string
	if sec.Content != nil {
		content = sec.Content()
	}
	if len(content) > rows {
		content = content[len(content)-rows:]
	}
	for i := 0; i < rows; i++ {
		var text string
		if i < len(content) {
			text = content[i]
		}
		if lipgloss.Width(text) > inner {
			text = truncate(text, inner-1) + "…"
		}
		out = append(out, bc.Render("│")+" "+text+
			strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return out
}

// truncate cuts s to at most width display columns.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	var w int
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}

var barRunes = []rune(" ▁▂▃▄▅▆▇█")

// Bars draws levels in [0, 255] as one row of block characters. Levels are
// grouped into width columns and each column shows its loudest level.
func Bars(levels []byte, width int) string {
	if width <= 0 || len(levels) == 0 {
		return ""
	}
	width = min(width, len(levels))
	var sb strings.Builder
	for col := 0; col < width; col++ {
		lo := col * len(levels) / width
		hi := (col + 1) * len(levels) / width
		var peak byte
		for _, v := range levels[lo:hi] {
			peak = max(peak, v)
		}
		sb.WriteRune(barRunes[int(peak)*(len(barRunes)-1)/255])
	}
	return sb.String()
}

// Scope draws samples in [-1, 1] as one row of block characters, showing the
// absolute peak of each column.
func Scope(samples []float32, width int) string {
	levels := make([]byte, len(samples))
	for i, s := range samples {
		if s < 0 {
			s = -s
		}
		levels[i] = byte(min(s, 1) * 255)
	}
	return Bars(levels, width)
}
