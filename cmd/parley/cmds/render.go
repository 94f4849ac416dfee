package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen, color.Bold)
	dimColor       = color.New(color.Faint)
	errorColor     = color.New(color.FgRed)
	currentColor   = color.New(color.FgYellow, color.Bold)
)

func printChats(w io.Writer, chats []chat.Chat, currentID string) {
	if len(chats) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No chats yet. Send a message to start one."))
		return
	}
	for i, c := range chats {
		marker := "  "
		title := chat.DisplayTitle(c)
		if c.RecordID != "" && c.RecordID == currentID {
			marker = currentColor.Sprint("* ")
			title = currentColor.Sprint(title)
		}
		fmt.Fprintf(w, "%s%2d. %s %s\n",
			marker,
			i+1,
			title,
			dimColor.Sprintf("(%s, %s)", c.RecordID, chat.RelativeTime(chat.LastActivity(c))),
		)
	}
}

func printMessage(w io.Writer, m chat.Message) {
	label := userColor.Sprint("you")
	if m.Role == chat.RoleAssistant {
		label = assistantColor.Sprint("assistant")
	}
	stamp := chat.FormatTimestamp(m.CreatedAt)
	if chat.IsProvisional(m) {
		stamp = "sending"
	}
	fmt.Fprintf(w, "%s %s\n", label, dimColor.Sprintf("[%s]", stamp))

	if m.Role == chat.RoleAssistant && renderMarkdown(w) {
		styled, err := glamour.Render(m.Content, "dark")
		if err == nil {
			fmt.Fprint(w, styled)
			return
		}
		log.Debug().Err(err).Msg("could not render markdown")
	}
	for _, line := range strings.Split(m.Content, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// renderMarkdown tells whether assistant replies written to w are styled.
func renderMarkdown(w io.Writer) bool {
	return !viper.GetBool("plain") && isTerminal(w)
}

func printMessages(w io.Writer, msgs []chat.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No messages yet."))
		return
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
}

func printError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorColor.Sprint(msg))
}
