package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <slug>",
	Short: "Run a need check for one food bank",
	Long:  "Fetches the food bank's need source, extracts the shopping list, and publishes a new need if it changed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	checker, err := app.newChecker(ctx)
	if err != nil {
		return err
	}

	result, err := checker.CheckBySlug(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Foodbank: %s\n", result.Foodbank.Name)
	fmt.Printf("Source:   %s (%s)\n", result.Foodbank.ShoppingListURL, result.SourceKind)
	if result.FetchErr != nil {
		fmt.Printf("Fetch failed: %v\n", result.FetchErr)
		return nil
	}

	fmt.Printf("Outcome:  %s\n", result.Outcome.Kind)
	if len(result.Outcome.Reasons) > 0 {
		fmt.Printf("Reasons:  %s\n", strings.Join(result.Outcome.Reasons, ", "))
	}
	if result.Need != nil {
		fmt.Printf("Published need %s:\n%s\n", result.Need.ID, result.NeedText)
		if result.ExcessText != "" {
			fmt.Printf("Excess:\n%s\n", result.ExcessText)
		}
	}
	return nil
}
