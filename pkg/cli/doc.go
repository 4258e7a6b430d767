/*
Package cli provides helpers shared by the gateway command.

Output Formatting:

Commands render their results as text or JSON:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Text output uses the value's Text method when it has one.

Exit Codes:

A command that ran but found problems, such as a rule file with errors,
returns an *ExitError so main can exit with its code without printing the
error twice.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
