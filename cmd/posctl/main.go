// Command posctl is the operator terminal for the POS server: cashier order
// entry with offline queueing, the kitchen's live order view, and admin
// day-session controls.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/config"
	"github.com/kopibar/pos/internal/orderstore"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// apiError maps a client error to an exit code: 2 for a server answer, 4 when
// the server could not be reached.
func apiError(action string, err error) error {
	if apiclient.IsTransport(err) {
		return codeError(4, "%s: server unreachable: %s", action, err)
	}
	return codeError(2, "%s: %s", action, err)
}

// app is shared by every subcommand.
type app struct {
	cfg    *config.ClientConfig
	client *apiclient.Client
}

func (a *app) requireToken() error {
	if a.client.Token() == "" {
		return codeError(3, "not logged in: run `posctl login` and export POS_TOKEN")
	}
	return nil
}

// newStore opens the order store backed by the on-disk offline queue.
func (a *app) newStore() (*orderstore.Store, error) {
	s, err := orderstore.New(a.client, orderstore.NewFileQueue(a.cfg.QueueFile), orderstore.LogNotifier{})
	if err != nil {
		return nil, codeError(3, "loading offline queue %s: %s", a.cfg.QueueFile, err)
	}
	return s, nil
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Operate the POS server from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.LoadClient()
			if url, _ := cmd.Flags().GetString("api"); url != "" {
				a.cfg.APIURL = url
			}
			a.client = apiclient.New(a.cfg.APIURL, apiclient.WithToken(a.cfg.Token))
		},
	}
	root.PersistentFlags().String("api", "", "Server base URL (overrides POS_API_URL)")

	root.AddCommand(
		loginCmd(a),
		dayCmd(a),
		historyCmd(a),
		menuCmd(a),
		orderCmd(a),
		ticketsCmd(a),
		kitchenCmd(a),
		queueCmd(a),
		adminCmd(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
