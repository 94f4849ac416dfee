package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/chat/orchestrator"
	"github.com/go-go-golems/parley/pkg/chat/store"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const replHelp = `Commands:
  /chats            list chats
  /open <n|id>      open a chat by list number or id
  /new [prompt]     start a new chat
  /reload           reload the messages of the current chat
  /help             show this help
  /quit             leave
Anything else is sent to the current chat (a new chat is started if none is open).`

func NewReplCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "repl",
		Short: "Chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printEvents, _ := cmd.Flags().GetBool("print-events")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var routerOptions []events.EventRouterOption
			if viper.GetBool("verbose") {
				routerOptions = append(routerOptions, events.WithVerbose(true))
			}
			router, err := events.NewEventRouter(routerOptions...)
			if err != nil {
				return err
			}

			publisher := events.NewPublisherManager()
			publisher.SubscribePublisher(events.TopicChanges, router.Publisher)

			e, err := newEngine(ctx, store.WithNotifier(publisher))
			if err != nil {
				_ = router.Close()
				return err
			}

			r := newRenderer(cmd.OutOrStdout(), e.store)
			router.AddHandler("render", events.TopicChanges, events.DecodeJSON(r.handle))
			if printEvents {
				router.AddHandler("dump", events.TopicChanges, router.DumpEvents(cmd.ErrOrStderr()))
			}

			routerCtx, cancelRouter := context.WithCancel(context.Background())
			eg := errgroup.Group{}
			eg.Go(func() error {
				return router.Run(routerCtx)
			})
			select {
			case <-router.Running():
			case <-ctx.Done():
			}

			replErr := runRepl(ctx, cmd.InOrStdin(), e, r)

			// operations still publish while they finish, so the router goes last
			if err := e.Close(); err != nil {
				log.Warn().Err(err).Msg("could not close orchestrator")
			}
			cancelRouter()
			_ = router.Close()
			if err := eg.Wait(); err != nil {
				log.Debug().Err(err).Msg("event router stopped")
			}
			return replErr
		},
	}
	ret.Flags().Bool("print-events", false, "Print store change events to stderr")
	return ret
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func runRepl(ctx context.Context, in io.Reader, e *engine, r *renderer) error {
	o := e.orchestrator
	interactive := isTerminal(in)

	_ = o.Refresh().Wait()
	r.print(func(w io.Writer) {
		fmt.Fprintf(w, "Signed in as %s\n", e.session.Email())
		printChats(w, o.Snapshot().Chats, "")
		fmt.Fprintln(w, dimColor.Sprint("Type /help for commands."))
	})

	lines := readLines(ctx, in)
	for {
		if interactive {
			r.print(func(w io.Writer) { fmt.Fprint(w, userColor.Sprint("> ")) })
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			r.expect(line)
			_ = o.SendPrompt(line).Wait()
			continue
		}

		name, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)
		switch name {
		case "quit", "exit", "q":
			return nil
		case "help", "h":
			r.print(func(w io.Writer) { fmt.Fprintln(w, replHelp) })
		case "chats", "refresh":
			if err := o.Refresh().Wait(); err == nil {
				snap := o.Snapshot()
				r.print(func(w io.Writer) { printChats(w, snap.Chats, snap.CurrentChatID) })
			}
		case "open":
			chatID, err := resolveChat(o.Snapshot(), arg)
			if err != nil {
				r.print(func(w io.Writer) { printError(w, err.Error()) })
				continue
			}
			r.forget(chatID)
			_ = o.Select(chatID).Wait()
		case "reload":
			chatID := o.Snapshot().CurrentChatID
			if chatID == "" {
				r.print(func(w io.Writer) { printError(w, "No chat is open.") })
				continue
			}
			r.forget(chatID)
			_ = o.Select(chatID, orchestrator.WithForce()).Wait()
		case "new":
			if arg != "" {
				r.expect(arg)
			}
			if err := o.Start(arg).Wait(); err == nil {
				if c, ok := o.Snapshot().CurrentChat(); ok {
					r.print(func(w io.Writer) {
						fmt.Fprintln(w, dimColor.Sprintf("Started chat %q", chat.DisplayTitle(c)))
					})
				}
			}
		default:
			r.print(func(w io.Writer) { printError(w, fmt.Sprintf("Unknown command /%s, try /help.", name)) })
		}
	}
}

// resolveChat accepts a 1-based position in the listed chats or a chat id.
func resolveChat(snap store.Snapshot, arg string) (string, error) {
	if arg == "" {
		return "", errors.New("Usage: /open <n|id>")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(snap.Chats) {
			return "", errors.Errorf("There is no chat number %d.", n)
		}
		return snap.Chats[n-1].RecordID, nil
	}
	return arg, nil
}
