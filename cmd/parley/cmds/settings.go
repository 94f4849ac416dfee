package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/parley/pkg/chat/gateway"
	"github.com/go-go-golems/parley/pkg/chat/orchestrator"
	"github.com/go-go-golems/parley/pkg/chat/store"
	"github.com/go-go-golems/parley/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/"
	DefaultTimeout = gateway.DefaultTimeout
)

var ErrNotLoggedIn = errors.New("not logged in, run `parley login` first")

func sessionPath() (string, error) {
	if p := viper.GetString("session-file"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find the user config directory, set --session-file")
	}
	return filepath.Join(dir, "parley", "session.yaml"), nil
}

func openSession() (*session.Store, error) {
	p, err := sessionPath()
	if err != nil {
		return nil, err
	}
	return session.OpenFileStore(p)
}

func clientOptions() []gateway.ClientOption {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return []gateway.ClientOption{gateway.WithTimeout(timeout)}
}

// engine bundles what the chat commands need to talk to the service.
type engine struct {
	session      *session.Store
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
}

func newEngine(ctx context.Context, storeOptions ...store.Option) (*engine, error) {
	sess, err := openSession()
	if err != nil {
		return nil, err
	}
	if !sess.IsAuthenticated() {
		return nil, ErrNotLoggedIn
	}

	client, err := gateway.NewClient(viper.GetString("base-url"), sess, clientOptions()...)
	if err != nil {
		return nil, err
	}

	s := store.New(storeOptions...)
	return &engine{
		session:      sess,
		store:        s,
		orchestrator: orchestrator.New(ctx, client, s),
	}, nil
}

func (e *engine) Close() error {
	return e.orchestrator.Close()
}

// wait waits for h and turns a failure into the error the user should see.
func (e *engine) wait(h *orchestrator.Handle) error {
	err := h.Wait()
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrUnauthorized) {
		return errors.New("your session has expired, run `parley login` again")
	}
	var opErr *orchestrator.OperationError
	if errors.As(err, &opErr) {
		return errors.New(opErr.Message)
	}
	return err
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout+5*time.Second)
}
