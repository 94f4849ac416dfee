package cmds

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/parley/pkg/chat/devserver"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory chat service for local development",
		Long: "Run an in-memory chat service implementing the API parley talks to. " +
			"Replies echo the user unless an OpenAI API key or an ollama model is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			responder, err := newResponder()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              viper.GetString("listen"),
				Handler:           devserver.New(devserver.WithResponder(responder)).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				log.Info().Str("addr", srv.Addr).Msg("Starting chat service")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				log.Info().Msg("Shutting down chat service")
				return srv.Shutdown(shutdownCtx)
			})
			return eg.Wait()
		},
	}
	ret.Flags().String("listen", ":8080", "Address to listen on")
	ret.Flags().String("openai-api-key", "", "OpenAI API key; replies are echoed when empty")
	ret.Flags().String("openai-base-url", "", "OpenAI-compatible API base URL")
	ret.Flags().String("openai-model", devserver.DefaultOpenAIModel, "Model used for replies")
	ret.Flags().String("ollama-model", "", "Ollama model used for replies; the server is taken from OLLAMA_HOST")
	ret.Flags().String("system-prompt", "", "System prompt sent with every conversation")
	return ret
}

func newResponder() (devserver.Responder, error) {
	key := viper.GetString("openai-api-key")
	ollamaModel := viper.GetString("ollama-model")
	systemPrompt := viper.GetString("system-prompt")

	switch {
	case key != "" && ollamaModel != "":
		return nil, errors.New("use either --openai-api-key or --ollama-model, not both")
	case key != "":
		return devserver.NewOpenAIResponder(key,
			devserver.WithOpenAIBaseURL(viper.GetString("openai-base-url")),
			devserver.WithOpenAIModel(viper.GetString("openai-model")),
			devserver.WithSystemPrompt(systemPrompt),
		)
	case ollamaModel != "":
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.Wrap(err, "could not create ollama client")
		}
		return devserver.NewOllamaResponder(client, ollamaModel, systemPrompt)
	default:
		return devserver.EchoResponder{}, nil
	}
}
