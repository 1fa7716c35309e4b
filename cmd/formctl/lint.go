package main

import (
	"fmt"
	"text/tabwriter"

	"formbuilder/internal/schema"

	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint FILE|NAME",
	Short: "Check a schema against the editor configuration",
	Long: `Reports unknown question types, duplicate question names and DreamLink IDs
outside the configured choices. With --stored the argument is a form name in
the active backend instead of a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List question types the editor accepts",
	Args:  cobra.NoArgs,
	RunE:  runTypes,
}

var (
	lintStored     bool
	lintRequireIDs bool
)

func init() {
	lintCmd.Flags().BoolVar(&lintStored, "stored", false, "lint a stored form by name")
	lintCmd.Flags().BoolVar(&lintRequireIDs, "require-ids", false, "report questions without a DreamLink ID")

	rootCmd.AddCommand(lintCmd, typesCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	var text string
	if lintStored {
		form, err := current.forms.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		text = form.SchemaJSON
	} else {
		var err error
		if text, err = readInput(cmd.InOrStdin(), args[0]); err != nil {
			return err
		}
	}

	s, err := schema.Parse(text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	issues := schema.Lint(s, current.editorConfig(), lintRequireIDs)
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d issue(s) found", len(issues))
	}
	fmt.Fprintf(out, "OK: %d questions\n", len(s.Questions()))
	return nil
}

func runTypes(cmd *cobra.Command, args []string) error {
	cfg := current.editorConfig()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tLABEL\tPROPERTIES")
	for _, t := range cfg.CustomTypes {
		props := ""
		for i, p := range t.Properties {
			if i > 0 {
				props += ", "
			}
			props += fmt.Sprintf("%s=%v", p.Name, p.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, cfg.TypeLabel(t.Name), props)
	}
	for _, p := range cfg.QuestionProperties {
		fmt.Fprintf(tw, "(all)\t%s\t%s: %d choices\n", cfg.T("pe."+p.Name), p.Name, len(p.Choices))
	}
	return tw.Flush()
}
