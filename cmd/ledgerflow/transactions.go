package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/importer"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "List and manage committed transactions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE:  runTransactionsList,
	}
	windowFlags(list)
	list.Flags().String("category", "", "only transactions in this category")
	list.Flags().Int("limit", 50, "maximum rows to show")
	list.Flags().Int("offset", 0, "rows to skip")

	add := &cobra.Command{
		Use:   "add",
		Short: "Enter a transaction by hand",
		Long: `Commit a hand-entered transaction under the synthetic manual import.
Without --category the classification rules decide; with it the category is
stored as user-assigned.`,
		RunE: runTransactionsAdd,
	}
	add.Flags().String("date", "", "transaction date (format: 2006-01-02, required)")
	add.Flags().String("description", "", "statement-style description (required)")
	add.Flags().Float64("amount", 0, "non-negative amount (required)")
	add.Flags().String("direction", "debit", "debit or credit")
	add.Flags().String("category", "", "category to assign")
	add.Flags().String("currency", "", "ISO currency code (default from config)")
	_ = add.MarkFlagRequired("date")
	_ = add.MarkFlagRequired("description")
	_ = add.MarkFlagRequired("amount")

	setCategory := &cobra.Command{
		Use:   "set-category <transaction-id> <category>",
		Short: "Assign a category by hand",
		Long: `Set a transaction's category. The assignment is marked user-made, so
recategorize passes leave it alone unless told otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: runTransactionsSetCategory,
	}

	recategorize := &cobra.Command{
		Use:   "recategorize",
		Short: "Re-run the rules over committed transactions",
		Long: `Re-evaluate committed transactions against the current rule set and
rewrite categories where a rule now decides differently. The pass can be
scoped with --start/--end/--category; unscoped it covers everything. Rows a
human categorized are skipped unless --include-user-assigned is set; rows no
rule matches keep their current category.`,
		RunE: runRecategorize,
	}
	windowFlags(recategorize)
	recategorize.Flags().String("category", "", "only transactions currently in this category")
	recategorize.Flags().Bool("include-user-assigned", false, "also rewrite categories a human assigned")

	cmd.AddCommand(list, add, setCategory, recategorize)
	return cmd
}

func runTransactionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	window, err := parseWindow(cmd)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := service.TransactionFilter{Owner: owner}
	if !window.Start.IsZero() {
		filter.StartDate = &window.Start
	}
	if !window.End.IsZero() {
		filter.EndDate = &window.End
	}
	filter.Category, _ = cmd.Flags().GetString("category")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")

	txns, err := store.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		fmt.Println("no transactions match")
		return nil
	}

	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		assigned := ""
		if txn.IsUserAssigned {
			assigned = "user"
		}
		rows = append(rows, []string{
			txn.ID,
			formatDate(txn.Date),
			txn.MerchantNormalized,
			string(txn.Direction),
			formatAmount(txn.Amount),
			txn.Category,
			assigned,
		})
	}
	fmt.Print(cli.RenderTable(
		[]string{"ID", "DATE", "MERCHANT", "DIR", "AMOUNT", "CATEGORY", ""}, rows))
	return nil
}

func runTransactionsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	rawDate, _ := cmd.Flags().GetString("date")
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", rawDate, err)
	}
	amount, _ := cmd.Flags().GetFloat64("amount")
	if amount < 0 {
		return fmt.Errorf("amount must be non-negative; use --direction for the sign")
	}
	direction, _ := cmd.Flags().GetString("direction")
	if direction != string(model.DirectionDebit) && direction != string(model.DirectionCredit) {
		return fmt.Errorf("direction must be debit or credit")
	}
	description, _ := cmd.Flags().GetString("description")
	category, _ := cmd.Flags().GetString("category")
	currency, _ := cmd.Flags().GetString("currency")
	if currency == "" {
		currency = "USD"
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	draft := &model.Transaction{
		Owner:          owner,
		Date:           date.UTC(),
		DescriptionRaw: description,
		Amount:         amount,
		Currency:       currency,
		Direction:      model.TransactionDirection(direction),
	}
	created, err := importer.AddManualTransaction(ctx, store, draft, category)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("added transaction %s (%s, %s)",
		created.ID, created.Category, formatAmount(created.Amount))))
	return nil
}

func runTransactionsSetCategory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cat, err := store.CreateCategory(ctx, args[1])
	if err != nil {
		return err
	}
	if err := store.SetTransactionCategory(ctx, args[0], cat.Name, 1.0, true); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("transaction %s is now %s", args[0], cat.Name)))
	return nil
}

func runRecategorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	window, err := parseWindow(cmd)
	if err != nil {
		return err
	}
	filter := importer.RecategorizeFilter{}
	if !window.Start.IsZero() {
		filter.StartDate = &window.Start
	}
	if !window.End.IsZero() {
		filter.EndDate = &window.End
	}
	filter.Category, _ = cmd.Flags().GetString("category")
	filter.IncludeUserAssigned, _ = cmd.Flags().GetBool("include-user-assigned")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	counts, err := importer.Recategorize(ctx, store, owner, filter)
	if err != nil {
		return err
	}

	content := fmt.Sprintf(`Scanned:              %d
Changed:              %d
Unchanged:            %d
Skipped (user-assigned): %d`,
		counts.Scanned, counts.Changed, counts.Unchanged, counts.SkippedUserAssigned)
	fmt.Println(cli.RenderBox("Recategorize", content))
	return nil
}
