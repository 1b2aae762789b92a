package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show or replace the category rules",
	Long: `Category rules map subjects to categories. A rule matches a subject equal
to its pattern or starting with it, ignoring case. An exact match beats a
prefix match, a longer prefix beats a shorter one, and remaining ties go to
the rule listed first. Unmatched subjects are "uncategorized".`,
}

var categoriesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current rule table",
	RunE:  runCategoriesShow,
}

var categoriesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the rule table from JSON",
	Long: `Replace the whole rule table. The input is a JSON array of rules read from
stdin or --file:

  [{"pattern": "Xcode", "subject_kind": "app", "category": "development"}]

subject_kind is app, domain or any. An invalid table is rejected and the
current rules stay in effect. Stored records keep their category until
'mtrack recategorize' is run.`,
	RunE: runCategoriesSet,
}

var recategorizeCmd = &cobra.Command{
	Use:   "recategorize",
	Short: "Re-apply the current rules to stored records",
	Long: `Re-apply the current rules to the stored category of every record in a
date range. Queries and reports always use the current rules; this updates
the category kept with each record.

Examples:
  mtrack recategorize                       # Today
  mtrack recategorize --from 2026-01-01     # Since January 1st`,
	RunE: runRecategorize,
}

var (
	categoriesJSON bool
	categoriesFile string
	recatFrom      string
	recatTo        string
)

func init() {
	categoriesCmd.AddCommand(categoriesShowCmd)
	categoriesCmd.AddCommand(categoriesSetCmd)

	categoriesShowCmd.Flags().BoolVar(&categoriesJSON, "json", false, "Print JSON")
	categoriesSetCmd.Flags().StringVarP(&categoriesFile, "file", "f", "", "Read rules from file instead of stdin")

	recategorizeCmd.Flags().StringVar(&recatFrom, "from", "", "First date (YYYY-MM-DD, default today)")
	recategorizeCmd.Flags().StringVar(&recatTo, "to", "", "Last date (YYYY-MM-DD, default today)")
}

func runCategoriesShow(cmd *cobra.Command, args []string) error {
	rules := app.Rules.Rules()
	out := cmd.OutOrStdout()
	if categoriesJSON {
		return printJSON(out, rules)
	}
	printRules(out, rules)
	return nil
}

func printRules(out io.Writer, rules *domain.RuleSet) {
	printTitle(out, fmt.Sprintf("Category rules (version %d)", rules.Version))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tPATTERN\tCATEGORY")
	for i, r := range rules.Rules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.SubjectKind, r.Pattern, r.Category)
	}
	_ = w.Flush()
}

func runCategoriesSet(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if categoriesFile != "" {
		f, err := os.Open(categoriesFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", categoriesFile, err)
		}
		defer f.Close()
		r = f
	}

	var rules []domain.CategoryRule
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}

	set, err := app.Rules.UpdateRules(cmd.Context(), rules)
	if err != nil {
		return err
	}
	printRules(cmd.OutOrStdout(), set)
	return nil
}

func runRecategorize(cmd *cobra.Command, args []string) error {
	rng, err := rangeFlags(recatFrom, recatTo, app.Activities.Today())
	if err != nil {
		return err
	}
	n, err := app.Rules.Recategorize(cmd.Context(), app.Activities, rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recategorized %d records between %s and %s (rules version %d)\n",
		n, rng.From, rng.To, app.Rules.Rules().Version)
	return nil
}
