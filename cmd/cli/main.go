package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/genofl/genofl/cli"
	"github.com/genofl/genofl/pkg/sdk"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "genofl-cli",
		Short: "GenoFL CLI",
		Long:  `GenoFL CLI is a command line interface for managing federated GWAS experiments.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  cli.DefCoordinatorURL,
				TLSVerification: cli.DefTLSVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	experimentsCmd := cli.NewExperimentsCmd()

	rootCmd.AddCommand(experimentsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
