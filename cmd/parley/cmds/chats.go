package cmds

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/chat/orchestrator"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ChatsCommand lists the user's chats as rows, most recent first.
type ChatsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ChatsCommand{}

func NewChatsCommand() (*ChatsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ChatsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"chats",
			cmds.WithShort("List your chats, most recent first"),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ChatsCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	_ *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if err := e.wait(e.orchestrator.Refresh()); err != nil {
		return err
	}

	for i, ch := range e.orchestrator.Snapshot().Chats {
		lastActivity := chat.LastActivity(ch)
		row := types.NewRow(
			types.MRP("n", i+1),
			types.MRP("id", ch.RecordID),
			types.MRP("title", chat.DisplayTitle(ch)),
			types.MRP("last_activity", chat.FormatTimestamp(lastActivity)),
			types.MRP("age", chat.RelativeTime(lastActivity)),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func NewHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <chat-id>",
		Short: "Show the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if err := e.wait(e.orchestrator.Select(args[0])); err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), e.orchestrator.Snapshot().CurrentMessages())
			return nil
		},
	}
}

func NewSendCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "send [--chat <chat-id>] <message...>",
		Short: "Send a message and print the reply",
		Long: "Send a message to an existing chat, or start a new chat with it when " +
			"--chat is not given.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if strings.TrimSpace(content) == "" {
				return errors.New("message is empty")
			}
			chatID, _ := cmd.Flags().GetString("chat")

			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			o := e.orchestrator
			if chatID != "" {
				if err := e.wait(o.Select(chatID)); err != nil {
					return err
				}
			}
			before := len(o.Snapshot().CurrentMessages())

			err = e.wait(o.SendPrompt(content))
			if chatID == "" {
				if c, ok := o.Snapshot().CurrentChat(); ok {
					fmt.Fprintln(cmd.OutOrStdout(), dimColor.Sprintf("Started chat %q (%s)", chat.DisplayTitle(c), c.RecordID))
				}
			}
			printNewMessages(cmd, o, before)
			return err
		},
	}
	ret.Flags().String("chat", "", "Chat to send to (default: start a new chat)")
	return ret
}

// printNewMessages prints the current chat's messages past the first skip ones,
// leaving out the user's own.
func printNewMessages(cmd *cobra.Command, o *orchestrator.Orchestrator, skip int) {
	msgs := o.Snapshot().CurrentMessages()
	if skip > len(msgs) {
		skip = len(msgs)
	}
	for _, m := range msgs[skip:] {
		if m.Role == chat.RoleUser {
			continue
		}
		printMessage(cmd.OutOrStdout(), m)
	}
}
