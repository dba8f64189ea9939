package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/model"
)

func reviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Work the duplicate review queue",
		Long: `Rows withheld during import because they looked like duplicates wait here.
Confirming a duplicate discards the row for good; marking it not-a-duplicate
commits it as a real transaction.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List duplicate reviews, oldest first",
		RunE:  runReviewsList,
	}
	list.Flags().String("status", "pending", "review status to list (pending, confirmed_duplicate, all)")

	resolve := &cobra.Command{
		Use:   "resolve <review-id> <confirm-duplicate|not-duplicate>",
		Short: "Resolve one pending review",
		Args:  cobra.ExactArgs(2),
		RunE:  runReviewsResolve,
	}
	resolve.Flags().String("note", "", "reviewer note stored with a confirmation")

	bulk := &cobra.Command{
		Use:   "bulk-resolve <confirm-duplicate|not-duplicate>",
		Short: "Resolve every pending review in one shot",
		Long: `Apply one verdict to all pending reviews. You must pass --expected with
the pending count you are looking at; if the live count differs the
operation aborts untouched, so a stale listing can't blind-resolve rows you
never saw.`,
		Args: cobra.ExactArgs(1),
		RunE: runReviewsBulkResolve,
	}
	bulk.Flags().Int("expected", -1, "pending review count you expect (required)")
	bulk.Flags().String("import", "", "only reviews from this import ID")
	_ = bulk.MarkFlagRequired("expected")

	cmd.AddCommand(list, resolve, bulk)
	return cmd
}

func parseReviewAction(raw string) (model.ReviewAction, error) {
	switch raw {
	case "confirm-duplicate":
		return model.ActionConfirmDuplicate, nil
	case "not-duplicate":
		return model.ActionNotDuplicate, nil
	default:
		return "", fmt.Errorf("unknown action %q (want confirm-duplicate or not-duplicate)", raw)
	}
}

func runReviewsList(cmd *cobra.Command, _ []string) error {
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

	rawStatus, _ := cmd.Flags().GetString("status")
	status := model.ReviewStatus(rawStatus)
	if rawStatus == "all" {
		status = ""
	}

	reviews, err := store.ListDuplicateReviews(ctx, owner, status)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Println("review queue is empty")
		return nil
	}

	rows := make([][]string, 0, len(reviews))
	for _, review := range reviews {
		rows = append(rows, []string{
			review.ID,
			formatDate(review.Draft.Date),
			review.Draft.MerchantNormalized,
			formatAmount(review.Draft.Amount),
			string(review.Reason),
			string(review.Scope),
			review.MatchedTransactionID,
		})
	}
	fmt.Print(cli.RenderTable(
		[]string{"ID", "DATE", "MERCHANT", "AMOUNT", "REASON", "SCOPE", "MATCHED"}, rows))
	return nil
}

func runReviewsResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	action, err := parseReviewAction(args[1])
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	createdID, err := store.ResolveDuplicateReview(ctx, args[0], action, note)
	if err != nil {
		return err
	}

	if createdID != "" {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("promoted review %s into transaction %s", args[0], createdID)))
	} else {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("confirmed review %s as duplicate", args[0])))
	}
	return nil
}

func runReviewsBulkResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	action, err := parseReviewAction(args[0])
	if err != nil {
		return err
	}
	expected, _ := cmd.Flags().GetInt("expected")
	importID, _ := cmd.Flags().GetString("import")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := store.BulkResolveDuplicateReviews(ctx, owner, importID, action, expected)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("resolved %d reviews", result.Resolved)
	if result.CreatedTransactions > 0 {
		msg += fmt.Sprintf(", created %d transactions", result.CreatedTransactions)
	}
	fmt.Println(cli.FormatSuccess(msg))
	return nil
}
