package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/johndosdos/chatsync/internal"
	"github.com/johndosdos/chatsync/internal/client"
	"github.com/johndosdos/chatsync/internal/model"
)

type clientFlags struct {
	server   string
	userID   string
	username string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "chat server URL (default $CHAT_SERVER)")
	cmd.Flags().StringVar(&f.userID, "user-id", "", "author user id (UUID)")
	cmd.Flags().StringVar(&f.username, "username", "", "author display name")
}

func (f *clientFlags) client(cmd *cobra.Command, opts ...client.Option) (*client.Client, error) {
	server := f.server
	if server == "" {
		server = configFrom(cmd).ServerURL
	}
	return client.New(server, internal.Author{UserID: f.userID, Username: f.username}, opts...)
}

// FormatMessage renders one display record as a single terminal line.
func FormatMessage(m model.DisplayMessage) string {
	return fmt.Sprintf("[%s] %s (#%s): %s",
		m.CreatedAt.Local().Format(time.Kitchen),
		m.User.Name,
		m.ID,
		m.Text)
}

func printList(w io.Writer, list []model.Message) {
	fmt.Fprintln(w, strings.Repeat("-", 40))
	display := model.Display(list)
	// Oldest at the top, like a chat window.
	for i := len(display) - 1; i >= 0; i-- {
		fmt.Fprintln(w, FormatMessage(display[i]))
	}
}

func newTailCmd() *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the message list and follow live changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c, err := f.client(cmd, client.WithOnChange(func(list []model.Message) {
				printList(out, list)
			}))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := c.Load(ctx); err != nil {
				return err
			}
			return c.Subscribe(ctx)
		},
	}
	f.register(cmd)
	return cmd
}

func newSendCmd() *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}

			msg, err := c.AddMessage(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), FormatMessage(model.Display([]model.Message{msg})[0]))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// findMessage loads the list and returns the message with id, which the
// client's author must be allowed to modify.
func findMessage(ctx context.Context, c *client.Client, id string) (model.Message, error) {
	if err := c.Load(ctx); err != nil {
		return model.Message{}, err
	}
	for _, m := range c.Snapshot() {
		if m.ID != id {
			continue
		}
		if !c.CanModify(m) {
			return model.Message{}, fmt.Errorf("message %s belongs to %s", id, m.DisplayName())
		}
		return m, nil
	}
	return model.Message{}, fmt.Errorf("message %s is not among the recent messages", id)
}

func newEditCmd() *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Edit one of your messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			msg, err := findMessage(ctx, c, args[0])
			if err != nil {
				return err
			}

			edited, err := c.EditMessage(ctx, msg, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), FormatMessage(model.Display([]model.Message{edited})[0]))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := findMessage(ctx, c, args[0]); err != nil {
				return err
			}
			if err := c.DeleteMessage(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
