package cmds

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/chat/devserver"
	"github.com/go-go-golems/parley/pkg/chat/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupService(t *testing.T) {
	t.Helper()
	server := httptest.NewServer(devserver.New(devserver.WithBcryptCost(bcrypt.MinCost)).Handler())
	t.Cleanup(server.Close)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("base-url", server.URL+"/api/")
	viper.Set("session-file", filepath.Join(t.TempDir(), "session.yaml"))
}

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsAgainstDevServer(t *testing.T) {
	setupService(t)

	out, err := run(t, NewRegisterCommand(), "", "--email", "ada@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created")

	_, err = listChats(t)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	// password read from stdin
	out, err = run(t, NewLoginCommand(), "pw\n", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada@example.com")

	rows, err := listChats(t)
	require.NoError(t, err)
	assert.Empty(t, rows)

	out, err = run(t, NewSendCommand(), "", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, `Started chat "hello there"`)
	assert.Contains(t, out, "You said: hello there")

	rows, err = listChats(t)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	title, _ := rows[0].Get("title")
	assert.Equal(t, "hello there", title)
	id, _ := rows[0].Get("id")
	chatID, ok := id.(string)
	require.True(t, ok)
	require.NotEmpty(t, chatID)

	out, err = run(t, NewSendCommand(), "", "--chat", chatID, "second")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: second")
	assert.NotContains(t, out, "Started chat")

	out, err = run(t, NewHistoryCommand(), "", chatID)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "assistant"))
	assert.Contains(t, out, "hello there")

	out, err = run(t, NewLogoutCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = run(t, NewHistoryCommand(), "", chatID)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

// listChats runs the chats command and returns the rows it produced.
func listChats(t *testing.T) ([]types.Row, error) {
	t.Helper()
	c, err := NewChatsCommand()
	require.NoError(t, err)

	gp := middlewares.NewTableProcessor()
	err = c.RunIntoGlazeProcessor(context.Background(), layers.NewParsedLayers(), gp)
	return gp.GetTable().Rows, err
}

func TestNewResponder(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("OLLAMA_HOST", "")

	r, err := newResponder()
	require.NoError(t, err)
	assert.IsType(t, devserver.EchoResponder{}, r)

	viper.Set("ollama-model", "llama2")
	r, err = newResponder()
	require.NoError(t, err)
	assert.IsType(t, &devserver.OllamaResponder{}, r)

	viper.Set("openai-api-key", "key")
	_, err = newResponder()
	assert.Error(t, err)

	viper.Set("ollama-model", "")
	r, err = newResponder()
	require.NoError(t, err)
	assert.IsType(t, &devserver.OpenAIResponder{}, r)
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	setupService(t)

	_, err := run(t, NewLoginCommand(), "", "--email", "nobody@example.com", "--password", "x")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
}

func TestResolveChat(t *testing.T) {
	snap := store.Reduce(store.NewSnapshot(), store.SetChats([]chat.Chat{{RecordID: "a"}, {RecordID: "b"}}))

	id, err := resolveChat(snap, "2")
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	id, err = resolveChat(snap, "some-id")
	require.NoError(t, err)
	assert.Equal(t, "some-id", id)

	_, err = resolveChat(snap, "3")
	assert.Error(t, err)
	_, err = resolveChat(snap, "")
	assert.Error(t, err)
}

func TestRendererPrintsEachMessageOnce(t *testing.T) {
	s := store.New()
	var out bytes.Buffer
	r := newRenderer(&out, s)
	ctx := context.Background()

	dispatch := func(a store.Action) {
		s.Dispatch(a)
		require.NoError(t, r.handle(ctx, 0, store.ChangeEvent{Action: a.Type.String(), ChatID: a.ChatID}))
	}

	r.expect("hi")
	dispatch(store.SetCurrentChat("c1"))
	dispatch(store.AddMessage("c1", chat.NewProvisionalMessage("c1", "hi", testNow)))
	assert.Empty(t, out.String())

	dispatch(store.AddMessages("c1", []chat.Message{
		{RecordID: "u1", Chat: "c1", Role: chat.RoleUser, Content: "hi"},
		{RecordID: "a1", Chat: "c1", Role: chat.RoleAssistant, Content: "hello!"},
	}))
	assert.Equal(t, 1, strings.Count(out.String(), "hello!"))
	assert.NotContains(t, out.String(), "you")

	dispatch(store.SetMessages("c1", s.Snapshot().MessagesByChat["c1"]))
	assert.Equal(t, 1, strings.Count(out.String(), "hello!"))

	r.forget("c1")
	dispatch(store.SetCurrentChat("c1"))
	assert.Equal(t, 2, strings.Count(out.String(), "hello!"))
	assert.Contains(t, out.String(), "you")

	dispatch(store.SetError("Unable to send message."))
	assert.Contains(t, out.String(), "Unable to send message.")
}

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
