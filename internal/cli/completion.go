package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// completeValues completes the first argument from a fixed set of names.
func completeValues[T ~string](values []T) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		var completions []string
		for _, v := range values {
			if strings.HasPrefix(strings.ToLower(string(v)), strings.ToLower(toComplete)) {
				completions = append(completions, string(v))
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}
