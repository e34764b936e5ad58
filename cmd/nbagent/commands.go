package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nyukimin/nbagent/internal/adapter/cli"
	"github.com/Nyukimin/nbagent/internal/application/classifier"
	"github.com/Nyukimin/nbagent/internal/domain/grading"
	"github.com/Nyukimin/nbagent/pkg/jobid"
	"github.com/Nyukimin/nbagent/pkg/metrics"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [provider]",
		Short: "Start the interactive agent (ollama, openai, claude, deepseek)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), noAgentMessage)
				return nil
			}
			return a.runChat(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func newClassifyCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "classify [csv]",
		Short: "Train the SVM and write predictions without an LLM",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.DefaultCSV
			if len(args) == 1 {
				path = args[0]
			}

			cfg := a.classifierConfig()
			if output != "" {
				cfg.OutputPath = output
			}
			pipeline := classifier.NewPipeline(cfg, metrics.Default(), jobid.NewGenerator(jobid.DefaultPrefix))

			result, err := pipeline.Run(cmd.Context(), path)
			if err != nil {
				var inputErr *classifier.InputError
				if errors.As(err, &inputErr) {
					fmt.Fprintln(cmd.OutOrStdout(), classifier.ErrorMessage(err))
					return nil
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "predictions output path (default classifier.output_path)")
	return cmd
}

func newGradeCmd(a *app) *cobra.Command {
	var predictions, dataset string

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Score a predictions file against the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := grading.Grade(predictions, dataset)

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode grading result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&predictions, "predictions", classifier.DefaultOutputPath, "predictions CSV")
	cmd.Flags().StringVar(&dataset, "dataset", cli.DefaultCSV, "player statistics CSV the predictions were made from")
	return cmd
}
