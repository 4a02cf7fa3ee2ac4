// Package cmd provides the CLI commands for taskmap.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"github.com/spf13/cobra"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for taskmap. Project, task, tag,
category, setting and habit ids complete from the configured store.

Bash:
  $ source <(taskmap completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ taskmap completion bash > /etc/bash_completion.d/taskmap
  # macOS:
  $ taskmap completion bash > $(brew --prefix)/etc/bash_completion.d/taskmap

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ taskmap completion zsh > "${fpath[1]}/_taskmap"

Fish:
  $ taskmap completion fish > ~/.config/fish/completions/taskmap.fish

PowerShell:
  PS> taskmap completion powershell | Out-String | Invoke-Expression
`,
	Annotations:           map[string]string{skipRuntime: "true"},
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
