package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/engine"
	"github.com/ledgerflow/ledgerflow/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
		Long: `Classification rules assign categories at import time. Active rules are
evaluated in priority order (lower first, creation order breaking ties) and
the first match wins.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE:  runRulesList,
	}
	list.Flags().Bool("all", false, "include inactive rules")

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a rule",
		RunE:  runRulesAdd,
	}
	add.Flags().String("type", "", "rule type (merchant_exact, merchant_contains, description_contains, source_category_contains, text_contains)")
	add.Flags().String("pattern", "", "text the rule matches on")
	add.Flags().String("category", "", "category the rule assigns")
	add.Flags().Float64("confidence", 0.8, "confidence recorded on matched transactions [0,1]")
	add.Flags().Int("priority", 100, "evaluation priority; lower runs first")
	_ = add.MarkFlagRequired("type")
	_ = add.MarkFlagRequired("pattern")
	_ = add.MarkFlagRequired("category")

	update := &cobra.Command{
		Use:   "update <rule-id>",
		Short: "Update a rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesUpdate,
	}
	update.Flags().String("pattern", "", "new pattern")
	update.Flags().String("category", "", "new category")
	update.Flags().Float64("confidence", -1, "new confidence")
	update.Flags().Int("priority", -1, "new priority")
	update.Flags().Bool("activate", false, "mark the rule active")
	update.Flags().Bool("deactivate", false, "mark the rule inactive")

	del := &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesDelete,
	}

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the rule set as JSON",
		Long:  `Write the owner's rules in evaluation order to a file, or stdout when no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesExport,
	}

	importRules := &cobra.Command{
		Use:   "import <file>",
		Short: "Install a rule set from JSON",
		Long: `Load rules from an exported JSON document. One invalid entry rejects the
whole file, so a partial rule set is never installed. By default the
document replaces the existing rules; --merge appends instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesImport,
	}
	importRules.Flags().Bool("merge", false, "append to existing rules instead of replacing them")

	cmd.AddCommand(list, add, update, del, export, importRules)
	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	all, _ := cmd.Flags().GetBool("all")
	rules, err := store.ListRules(ctx, owner, !all)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("no rules configured")
		return nil
	}

	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		active := "yes"
		if !rule.IsActive {
			active = "no"
		}
		rows = append(rows, []string{
			rule.ID,
			fmt.Sprintf("%d", rule.Priority),
			string(rule.Type),
			rule.Pattern,
			rule.Category,
			fmt.Sprintf("%.2f", rule.Confidence),
			active,
		})
	}
	fmt.Print(cli.RenderTable(
		[]string{"ID", "PRI", "TYPE", "PATTERN", "CATEGORY", "CONF", "ACTIVE"}, rows))
	return nil
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	ruleType, _ := cmd.Flags().GetString("type")
	pattern, _ := cmd.Flags().GetString("pattern")
	category, _ := cmd.Flags().GetString("category")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	priority, _ := cmd.Flags().GetInt("priority")

	rule := &model.ClassificationRule{
		Owner:      owner,
		Type:       model.RuleType(ruleType),
		Pattern:    pattern,
		Category:   category,
		Confidence: confidence,
		Priority:   priority,
		IsActive:   true,
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateRule(ctx, rule); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("added rule %s (%s %q -> %s)",
		rule.ID, rule.Type, rule.Pattern, rule.Category)))
	return nil
}

func runRulesUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rule, err := store.GetRule(ctx, args[0])
	if err != nil {
		return err
	}

	if pattern, _ := cmd.Flags().GetString("pattern"); pattern != "" {
		rule.Pattern = pattern
	}
	if category, _ := cmd.Flags().GetString("category"); category != "" {
		rule.Category = category
	}
	if confidence, _ := cmd.Flags().GetFloat64("confidence"); confidence >= 0 {
		rule.Confidence = confidence
	}
	if priority, _ := cmd.Flags().GetInt("priority"); priority >= 0 {
		rule.Priority = priority
	}
	if activate, _ := cmd.Flags().GetBool("activate"); activate {
		rule.IsActive = true
	}
	if deactivate, _ := cmd.Flags().GetBool("deactivate"); deactivate {
		rule.IsActive = false
	}

	if err := store.UpdateRule(ctx, rule); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("updated rule %s", rule.ID)))
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteRule(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("deleted rule %s", args[0])))
	return nil
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rules, err := store.ListRules(ctx, owner, false)
	if err != nil {
		return err
	}
	data, err := engine.ExportRules(rules)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(args[0], data, 0600); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("exported %d rules to %s", len(rules), args[0])))
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0]) // #nosec G304 -- user-supplied rules path
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := engine.LoadRules(data)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	merge, _ := cmd.Flags().GetBool("merge")
	if err := store.ReplaceRules(ctx, owner, rules, merge); err != nil {
		return err
	}

	verb := "replaced rule set with"
	if merge {
		verb = "merged in"
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s %d rules from %s", verb, len(rules), args[0])))
	return nil
}
