package cmds

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/go-go-golems/parley/pkg/chat/gateway"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
)

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "Account e-mail")
	cmd.Flags().String("password", "", "Account password (prompted when omitted)")
}

func readCredentials(cmd *cobra.Command) (gateway.Credentials, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	ui := &input.UI{
		Writer: cmd.OutOrStdout(),
		Reader: cmd.InOrStdin(),
	}
	var err error
	if email == "" {
		email, err = ui.Ask("E-mail", &input.Options{Required: true, HideOrder: true})
		if err != nil {
			return gateway.Credentials{}, errors.Wrap(err, "could not read e-mail")
		}
	}
	if password == "" {
		password, err = ui.Ask("Password", &input.Options{
			Required:  true,
			HideOrder: true,
			Mask:      isTerminal(cmd.InOrStdin()),
		})
		if err != nil {
			return gateway.Credentials{}, errors.Wrap(err, "could not read password")
		}
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return gateway.Credentials{}, errors.New("e-mail and password are required")
	}
	return gateway.Credentials{Email: email, Password: password}, nil
}

func authFailure(err error, fallback string) error {
	if msg, ok := gateway.ServerMessage(err); ok {
		return errors.New(msg)
	}
	return errors.Wrap(err, fallback)
}

func NewLoginCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := readCredentials(cmd)
			if err != nil {
				return err
			}
			sess, err := openSession()
			if err != nil {
				return err
			}
			auth, err := gateway.NewAuthClient(viper.GetString("base-url"), sess, clientOptions()...)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if _, err := auth.Login(ctx, creds); err != nil {
				return authFailure(err, "login failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", color.GreenString(sess.Email()))
			return nil
		},
	}
	addCredentialFlags(ret)
	return ret
}

func NewRegisterCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := readCredentials(cmd)
			if err != nil {
				return err
			}
			auth, err := gateway.NewAuthClient(viper.GetString("base-url"), nil, clientOptions()...)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			resp, err := auth.Register(ctx, creds)
			if err != nil {
				return authFailure(err, "registration failed")
			}

			msg := resp.Message
			if msg == "" {
				msg = "Account created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s. Run `parley login` to sign in.\n", msg)
			return nil
		},
	}
	addCredentialFlags(ret)
	return ret
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			if err := sess.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
