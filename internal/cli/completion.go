package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"proxyscout/internal/config"
)

// completeSettingKeys provides shell completion for settings keys. It needs
// no database, so it works before PersistentPreRunE has run.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, key := range config.Keys() {
		if strings.HasPrefix(key, strings.ToLower(toComplete)) {
			completions = append(completions, key+"\t"+config.Help(key))
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}
