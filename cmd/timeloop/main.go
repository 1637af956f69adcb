// Command timeloop runs a loop of logging tasks described by a YAML file.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

var configFlag = cli.StringFlag{
	Name:  "config, c",
	Usage: "path to the YAML configuration",
	Value: "timeloop.yaml",
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "timeloop"
	app.HelpName = "timeloop"
	app.Usage = "run repeating tasks on a single cooperative loop"
	app.UsageText = "timeloop <command> [arguments...]"
	app.Version = version
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the loop and block until interrupted",
			Flags:  []cli.Flag{configFlag},
			Action: runCommand,
		},
		{
			Name:   "validate",
			Usage:  "check the configuration and list the tasks it registers",
			Flags:  []cli.Flag{configFlag},
			Action: validateCommand,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "timeloop:", err)
		os.Exit(1)
	}
}
