package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmau0/riobutcher/internal/transcript"
)

// MarkdownExporter writes the transcript as a Markdown document.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	title := t.ClientName
	if title == "" {
		title = t.SessionID
	}
	if _, err := fmt.Fprintf(w, "# Conversa com %s\n\n", title); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "**Sessão:** %s  \n", t.SessionID)
	if t.Phone != "" {
		_, _ = fmt.Fprintf(w, "**Telefone:** %s  \n", t.Phone)
	}
	_, _ = fmt.Fprintf(w, "**Mensagens:** %d\n\n---\n\n", len(t.Turns))

	for i, turn := range t.Turns {
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n", speaker(turn.Role), turn.CreatedAt, escapeMarkdown(turn.Content))
		if i < len(t.Turns)-1 {
			_, _ = fmt.Fprint(w, "---\n\n")
		}
	}
	return nil
}

func (e *MarkdownExporter) Extension() string   { return "md" }
func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }

func speaker(r transcript.Role) string {
	if r == transcript.RoleAssistant {
		return "Atendente"
	}
	return "Cliente"
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}
