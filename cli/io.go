package cli

import (
	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

func logJSONCmd(cmd cobra.Command, v any) {
	out, err := prettyjson.Marshal(v)
	if err != nil {
		logErrorCmd(cmd, err)

		return
	}
	cmd.Println(string(out))
}

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprintf(cmd.ErrOrStderr(), "\nerror: ")
	cmd.PrintErrln(color.RedString(err.Error()))
}

func logSuccessCmd(cmd cobra.Command, msg string) {
	cmd.Println(color.GreenString(msg))
}

func logOKCmd(cmd cobra.Command) {
	cmd.Println(color.BlueString("\nok"))
}

func logUsageCmd(cmd cobra.Command, usage string) {
	cmd.Println(color.YellowString("\nusage: %s", usage))
}
