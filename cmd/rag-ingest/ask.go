package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upb/scifit-rag/internal/rag"
)

func newAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from the index and print the JSON response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := loadDependencies(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(ctx) }()

			req := &rag.Request{UserMessage: strings.Join(args, " ")}
			if cmd.Flags().Changed("top-k") {
				req.TopK = rag.TopKValue(topK)
			}

			answer, err := deps.Orchestrator.Answer(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", rag.DefaultTopK, "number of passages to retrieve (clamped to 1..10)")
	return cmd
}
