package main

import (
	"fmt"
	"os"

	"github.com/paranoidnas/media/internal/cmd"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/paranoidnas/media/internal/version"
	"github.com/urfave/cli/v2"
)

// Build paranoidNAS installer media.
func main() {
	// Env files only provide defaults, flags and the real environment win
	if err := utils.LoadEnvFile(utils.EnvFile()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	app := cli.NewApp()
	app.Name = "paranoidnas-media"
	app.Usage = "paranoidNAS installer media builder"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "paranoidNAS authors"}}
	app.Copyright = "paranoidNAS authors"
	// ssh keys carry commas in their comments
	app.DisableSliceFlagSeparator = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			EnvVars: []string{"PARANOIDNAS_DEBUG"},
		},
	}
	app.Before = func(c *cli.Context) error {
		utils.SetLogger(c.Bool("debug"))
		v := version.Get()
		utils.Log.Debug().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("paranoidNAS media")
		return nil
	}
	app.Commands = cmd.Commands

	err := app.Run(os.Args)
	if err != nil {
		utils.Log.Err(err).Send()
		os.Exit(1)
	}
}
