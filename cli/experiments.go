// Package cli implements the genofl-cli commands against the coordinator
// API.
package cli

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	genofl "github.com/genofl/genofl"
	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/sdk"
)

var (
	DefTLSVerification        = false
	DefCoordinatorURL         = "http://localhost:7070"
	defOffset          uint64 = 0
	defLimit           uint64 = 10
	fromFile           string
)

var gsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	gsdk = s
}

func NewExperimentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiments [create|view|list|delete|start|run|export]",
		Short: "Experiments manager",
		Long:  `Create, view, list, delete, start experiments and export trained models.`,
	}

	createCmd := &cobra.Command{
		Use:   "create [<name>]",
		Short: "Create experiment",
		Long: `Create experiment from a TOML file, from arguments, or interactively.

Examples:
  # Create from an experiment file
  genofl-cli experiments create --file experiment.toml

  # Create interactively
  genofl-cli experiments create`,
		Run: func(cmd *cobra.Command, args []string) {
			var exp experiment.Experiment
			switch {
			case fromFile != "":
				cfg, err := genofl.LoadExperimentFile(fromFile)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				exp, err = cfg.ToExperiment()
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			case len(args) == 1:
				exp.Name = args[0]
				if err := promptExperiment(&exp); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			default:
				if err := promptExperiment(&exp); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			}

			created, err := gsdk.CreateExperiment(exp)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, created)
		},
	}
	createCmd.Flags().StringVarP(&fromFile, "file", "f", "", "Experiment TOML file")

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View experiment",
		Long:  `View experiment.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			exp, err := gsdk.GetExperiment(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, exp)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Long:  `List experiments.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := gsdk.ListExperiments(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete experiment",
		Long:  `Delete experiment.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := gsdk.DeleteExperiment(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start experiment",
		Long:  `Start the experiment's federated training run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := gsdk.StartExperiment(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Experiment started")
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <id>",
		Short: "View run state",
		Long:  `View the experiment's run state: round, loss history, selected candidate.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			run, err := gsdk.GetRun(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, run)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <id> <path>",
		Short: "Export model",
		Long:  `Export the experiment's best model snapshot to a path on the coordinator host.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := gsdk.ExportModel(args[0], args[1]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Model exported to "+args[1])
		},
	}

	cmd.AddCommand(createCmd, viewCmd, listCmd, deleteCmd, startCmd, runCmd, exportCmd)

	cmd.PersistentFlags().StringVarP(
		&DefCoordinatorURL,
		"coordinator-url",
		"c",
		DefCoordinatorURL,
		"Coordinator URL",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	cmd.PersistentFlags().BoolVarP(
		&DefTLSVerification,
		"tls-verification",
		"v",
		DefTLSVerification,
		"TLS Verification",
	)

	return cmd
}

// promptExperiment fills the missing experiment fields interactively.
func promptExperiment(exp *experiment.Experiment) error {
	var nodes, rounds, epochs string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Experiment name").
				Value(&exp.Name).
				Validate(func(s string) error {
					if s == "" {
						return errEmptyName
					}

					return nil
				}),
			huh.NewInput().
				Title("Phenotype").
				Value(&exp.Phenotype),
			huh.NewInput().
				Title("Data nodes (comma-separated)").
				Value(&nodes),
			huh.NewInput().
				Title("Rounds").
				Value(&rounds),
			huh.NewInput().
				Title("Epochs per round").
				Value(&epochs),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	for _, n := range strings.Split(nodes, ",") {
		if n = strings.TrimSpace(n); n != "" {
			exp.Nodes = append(exp.Nodes, n)
		}
	}
	if rounds != "" {
		r, err := strconv.Atoi(rounds)
		if err != nil {
			return err
		}
		exp.Rounds = r
	}
	if epochs != "" {
		e, err := strconv.Atoi(epochs)
		if err != nil {
			return err
		}
		exp.EpochsInRound = e
	}

	return nil
}
