package export

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jmau0/riobutcher/internal/transcript"
)

// TextExporter renders the transcript for a terminal. Colors are only
// emitted when w is a color-capable terminal.
type TextExporter struct{}

func (e *TextExporter) Export(t *Transcript, w io.Writer) error {
	r := lipgloss.NewRenderer(w)

	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	metaStyle := r.NewStyle().Foreground(lipgloss.Color("243"))
	userStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	timestampStyle := r.NewStyle().Italic(true).Foreground(lipgloss.Color("240"))
	contentStyle := r.NewStyle().PaddingLeft(2)

	title := t.SessionID
	if t.ClientName != "" {
		title = fmt.Sprintf("%s (%s)", t.ClientName, t.SessionID)
	}
	if _, err := fmt.Fprintln(w, headerStyle.Render(title)); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("%d mensagens", len(t.Turns))))
	_, _ = fmt.Fprintln(w)

	for _, turn := range t.Turns {
		label := userStyle.Render(speaker(turn.Role))
		if turn.Role == transcript.RoleAssistant {
			label = agentStyle.Render(speaker(turn.Role))
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", label, timestampStyle.Render(turn.CreatedAt))
		_, _ = fmt.Fprintln(w, contentStyle.Render(turn.Content))
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

func (e *TextExporter) Extension() string   { return "txt" }
func (e *TextExporter) ContentType() string { return "text/plain; charset=utf-8" }
