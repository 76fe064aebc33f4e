package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
)

func NewAskCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <dir> <question>",
		Short: "Answer one question about a directory of documents",
		Args:  cobra.MinimumNArgs(2),
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

			ctx := cmd.Context()
			st, err := a.Service.Process(ctx, session, args[0])
			if err != nil {
				return err
			}
			logger.Info("indexed %d chunks from %d documents", st.Chunks, st.Documents-st.Excluded)

			res, err := a.Service.AnswerQuery(ctx, session, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printAnswer(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printAnswer(w io.Writer, res domain.QueryResult) {
	fmt.Fprintln(w, res.Answer)
	if len(res.RelevantDocs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, c := range res.RelevantDocs {
		src := c.DocumentName
		if c.Page > 0 {
			src = fmt.Sprintf("%s p.%d", src, c.Page)
		}
		fmt.Fprintf(w, "  [%d] %s: %s\n", i+1, src, preview(c.Text, 80))
	}
	fmt.Fprintf(w, "\n(%.2fs)\n", res.ResponseTime)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
