package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/repository/local"

	"github.com/spf13/cobra"
)

var responsesCmd = &cobra.Command{
	Use:   "responses",
	Short: "Manage responses collected in the local store",
}

var responsesListCmd = &cobra.Command{
	Use:   "list FORM",
	Short: "List responses, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runResponsesList,
}

var responsesAddCmd = &cobra.Command{
	Use:   "add FORM FILE",
	Short: "Record a response from a JSON object (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE:  runResponsesAdd,
}

var responsesClearCmd = &cobra.Command{
	Use:   "clear FORM",
	Short: "Delete every response of a form",
	Args:  cobra.ExactArgs(1),
	RunE:  runResponsesClear,
}

var (
	respPage int
	respSize int
)

func init() {
	responsesListCmd.Flags().IntVar(&respPage, "page", 1, "page number")
	responsesListCmd.Flags().IntVar(&respSize, "size", 10, "responses per page")

	responsesCmd.AddCommand(responsesListCmd, responsesAddCmd, responsesClearCmd)
	rootCmd.AddCommand(responsesCmd)
}

func runResponsesList(cmd *cobra.Command, args []string) error {
	records, err := current.responses.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No responses")
		return nil
	}

	page, total := local.Page(records, respPage, respSize)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBMITTED\tANSWERS")
	for _, r := range page {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, formatMillis(r.SubmittedAt), summarize(r.Data))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Page %d of %d (%d responses)\n", clampPage(respPage, total), total, len(records))
	return nil
}

func runResponsesAdd(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("response must be a JSON object: %w", err)
	}

	rec := models.ResponseRecord{Data: data}
	if err := current.responses.Add(cmd.Context(), args[0], rec); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Response recorded")
	return nil
}

func runResponsesClear(cmd *cobra.Command, args []string) error {
	if err := current.responses.Clear(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared responses for %s\n", args[0])
	return nil
}

// summarize renders answers as key=value pairs in key order
func summarize(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	s := strings.Join(parts, " ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
