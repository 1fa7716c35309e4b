package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	models "formbuilder/internal/domain/models/forms"
	formsSvc "formbuilder/internal/service/forms"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List forms in the active backend",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a form's schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var putCmd = &cobra.Command{
	Use:   "put FILE",
	Short: "Create or update a form from a schema file (- for stdin)",
	Long: `Reads a schema and upserts it. Without --name a new form is created and its
name is printed. The title defaults to the schema's own title.`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

var rmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Delete a form",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

var (
	putName      string
	putTitle     string
	putSlug      string
	putChangelog string
)

func init() {
	putCmd.Flags().StringVar(&putName, "name", "", "existing form to update")
	putCmd.Flags().StringVar(&putTitle, "title", "", "form title (default: schema title)")
	putCmd.Flags().StringVar(&putSlug, "slug", "", "form slug (default: derived from title)")
	putCmd.Flags().StringVar(&putChangelog, "changelog", "", "version note for the remote backend")

	rootCmd.AddCommand(listCmd, getCmd, putCmd, rmCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	forms, err := current.forms.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(forms) == 0 {
		fmt.Fprintf(out, "No forms (%s backend)\n", current.forms.Mode())
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tSTATUS\tMODIFIED")
	for _, f := range forms {
		status := "-"
		if f.Status != nil {
			status = *f.Status
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Title, status, formatMillis(f.Modified))
	}
	return tw.Flush()
}

func runGet(cmd *cobra.Command, args []string) error {
	form, err := current.forms.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), form.SchemaJSON)
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	schema, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	title := putTitle
	if title == "" {
		title = formsSvc.TitleOf(schema)
	}
	input := models.UpsertInput{
		Name:       putName,
		Title:      title,
		SchemaJSON: schema,
	}
	if putSlug != "" {
		input.Slug = &putSlug
	}
	if putChangelog != "" {
		input.Changelog = &putChangelog
	}

	result, err := current.forms.Upsert(cmd.Context(), input)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Name)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := current.forms.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

// readInput reads a file, or stdin for "-"
func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
