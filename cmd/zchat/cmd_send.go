package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-chat/internal/errs"
	"github.com/zhouzirui/z-chat/internal/model/chat"
)

func newSendCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("message must not be empty")
			}

			var username string
			if sess, ok := a.auth.Current(); ok {
				username = sess.Username
			}

			err := a.chat.SendMessage(cmd.Context(), text, username)
			if errors.Is(err, errs.ErrAuthRequired) {
				return fmt.Errorf("%w (run \"zchat login\")", err)
			}

			// on failure the transcript still ends with the explanatory assistant message
			messages := a.chat.Messages()
			if last := messages[len(messages)-1]; last.Role == chat.RoleAssistant {
				fmt.Fprintln(cmd.OutOrStdout(), last.Content)
			}
			return err
		},
	}
}
