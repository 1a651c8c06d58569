package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsoch/gosmeagle/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "gosmeagle",
	Short: "gosmeagle generates ABI corpora for shared libraries",
	Long: `gosmeagle reads the symbol table and DWARF debugging information of a
shared library and emits a JSON corpus describing, for every externally
visible function, variable, and call site, where its arguments and
return values live under the platform's calling convention.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
