package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"ragreader/internal/logger"
	"ragreader/internal/tui"
)

func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <dir>",
		Short: "Index a directory and chat about it in the terminal",
		Long: `Index every .txt and .pdf file in <dir> and open an interactive chat.
Questions can be asked as soon as processing finishes. Use Up/Down to
browse the passages behind the latest answer and Esc to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := a.Close(ctx); err != nil {
					logger.Warn("shutdown: %v", err)
				}
			}()

			handle, err := a.Service.SubmitDocuments(session, args[0])
			if err != nil {
				return err
			}
			return tui.Run(a.Service, session, handle)
		},
	}
}
