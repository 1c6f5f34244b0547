package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/paranoidnas/media/internal/version"
	"github.com/paranoidnas/media/pkg/autoinstall"
	"github.com/paranoidnas/media/pkg/dag"
	"github.com/paranoidnas/media/pkg/iso"
	"github.com/paranoidnas/media/pkg/overlay"
	"github.com/paranoidnas/media/pkg/state"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

func env(name string) []string {
	return []string{constants.EnvPrefix + name}
}

// autoinstallFlags are shared by every command rendering an autoinstall document.
func autoinstallFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Value:   constants.DefaultUsername,
			EnvVars: env("USERNAME"),
		},
		&cli.StringFlag{
			Name: "hostname",
			// -h is the help flag
			Aliases: []string{"H"},
			Value:   constants.DefaultHostname,
			EnvVars: env("HOSTNAME"),
		},
		&cli.StringSliceFlag{
			Name:    "authorized-key",
			Aliases: []string{"a"},
			Usage:   "ssh public key allowed to log in, can be repeated",
			EnvVars: env("AUTHORIZED_KEY"),
		},
		&cli.StringFlag{
			Name:    "locale",
			Aliases: []string{"l"},
			Value:   constants.DefaultLocale,
			EnvVars: env("LOCALE"),
		},
		&cli.StringFlag{
			Name:    "kb-layout",
			Aliases: []string{"k"},
			Value:   constants.DefaultKeyboardLayout,
			EnvVars: env("KB_LAYOUT"),
		},
		&cli.StringFlag{
			Name:        "timezone",
			Aliases:     []string{"z"},
			Usage:       "installed system timezone",
			DefaultText: "Autodetect",
			EnvVars:     env("TIMEZONE"),
		},
		&cli.StringFlag{
			Name:    "boot",
			Aliases: []string{"b"},
			Usage:   "boot mode of the target machine, MBR or EFI",
			Value:   constants.DefaultBootMode,
			EnvVars: env("BOOT"),
		},
		&cli.BoolFlag{
			Name:    "interactive-storage",
			Usage:   "leave the storage layout to the user during the install",
			EnvVars: env("INTERACTIVE_STORAGE"),
		},
		&cli.BoolFlag{
			Name:    "interactive-network",
			Usage:   "leave the network setup to the user during the install",
			EnvVars: env("INTERACTIVE_NETWORK"),
		},
	}
}

// autoinstallParams reads and validates the autoinstall flags.
func autoinstallParams(c *cli.Context) (autoinstall.BootMode, autoinstall.Params, error) {
	mode, err := autoinstall.ParseBootMode(c.String("boot"))
	if err != nil {
		return 0, autoinstall.Params{}, err
	}
	var sections []string
	if c.Bool("interactive-storage") {
		sections = append(sections, "storage")
	}
	if c.Bool("interactive-network") {
		sections = append(sections, "network")
	}
	p := autoinstall.Params{
		Username:            c.String("username"),
		Hostname:            c.String("hostname"),
		Locale:              c.String("locale"),
		KeyboardLayout:      c.String("kb-layout"),
		AuthorizedKeys:      utils.CleanupSlice(c.StringSlice("authorized-key")),
		Timezone:            c.String("timezone"),
		InteractiveSections: utils.UniqueSlice(sections),
	}
	if err := p.Validate(); err != nil {
		return 0, autoinstall.Params{}, err
	}
	return mode, p, nil
}

var Commands = []*cli.Command{
	{
		Name:      "build",
		Usage:     "build the paranoidNAS installer image",
		UsageText: "build [options]",
		Description: `
Downloads the Ubuntu live server image and turns it into an unattended paranoidNAS installer,
carrying the rendered autoinstall document and the media content.
`,
		Flags: append(autoinstallFlags(),
			&cli.BoolFlag{
				Name:    "no-prompt",
				Usage:   "start installing without asking for confirmation",
				EnvVars: env("NO_PROMPT"),
			},
			&cli.StringFlag{
				Name:    "working-dir",
				Value:   constants.DefaultWorkingDir,
				EnvVars: env("WORKING_DIR"),
			},
			&cli.StringFlag{
				Name:    "media-content",
				Usage:   "local media content directory, used instead of the bundled archive when present",
				Value:   constants.DefaultMediaContent,
				EnvVars: env("MEDIA_CONTENT"),
			},
			&cli.BoolFlag{
				Name:    "strict-content",
				Usage:   "fail on media content archive entries that are neither files nor directories",
				EnvVars: env("STRICT_CONTENT"),
			},
			&cli.StringFlag{
				Name:    "release",
				Value:   constants.DefaultRelease,
				EnvVars: env("RELEASE"),
			},
			&cli.StringFlag{
				Name:    "iso-url",
				Usage:   "download the base image from this url instead of the release one",
				EnvVars: env("ISO_URL"),
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				DefaultText: filepath.Join(constants.DefaultWorkingDir, constants.DefaultOutput),
				EnvVars:     env("OUTPUT"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "print the build plan and exit",
				EnvVars: env("DRY_RUN"),
			},
		),
		Action: func(c *cli.Context) error {
			mode, params, err := autoinstallParams(c)
			if err != nil {
				return err
			}
			workingDir := c.String("working-dir")
			output := c.String("output")
			if output == "" {
				output = filepath.Join(workingDir, constants.DefaultOutput)
			}
			prompt := !c.Bool("no-prompt")

			s := &state.State{
				FS:         vfs.OSFS,
				WorkingDir: workingDir,
				Output:     output,
				BootMode:   mode,
				Params:     params,
				Prompt:     prompt,
				Providers:  overlay.DefaultProviders(vfs.OSFS, c.String("media-content"), c.Bool("strict-content")),
				Fetcher: &iso.UbuntuServerFetcher{
					FS:         vfs.OSFS,
					WorkingDir: workingDir,
					Release:    c.String("release"),
					URL:        c.String("iso-url"),
				},
				Writer:   iso.NewXorrisoWriter(),
				Progress: utils.NewLogProgress("installer image download"),
			}

			g := herd.DAG(herd.EnableInit)
			if err := dag.RegisterBuild(s, g); err != nil {
				return err
			}
			utils.Log.Info().Msg(s.WriteDAG(g))

			// Once we print the dag we can exit already
			if c.Bool("dry-run") {
				return nil
			}

			err = g.Run(c.Context)
			utils.Log.Info().Msg(s.WriteDAG(g))
			if err != nil {
				return err
			}
			if err := s.Errors(g); err != nil {
				return err
			}

			if !prompt && len(params.InteractiveSections) == 0 {
				utils.Log.Warn().Msg("This ISO has no prompt or interactive steps. It will overwrite the selected OS disk without any intervention.")
			}
			utils.Log.Info().Str("what", output).Msg("You're ready to burn!")
			return nil
		},
	},
	{
		Name:      "dumpautoinstall",
		Usage:     "print the rendered autoinstall document",
		UsageText: "dumpautoinstall [options]",
		Flags:     autoinstallFlags(),
		Action: func(c *cli.Context) error {
			mode, params, err := autoinstallParams(c)
			if err != nil {
				return err
			}
			out, err := autoinstall.Render(mode, params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(c.App.Writer, out)
			return err
		},
	},
	{
		Name:      "seed",
		Usage:     "write a NoCloud seed image with the rendered autoinstall document",
		UsageText: "seed [options]",
		Description: `
Writes a small cidata volume to attach next to an unmodified Ubuntu live server image.
`,
		Flags: append(autoinstallFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   filepath.Join(constants.DefaultWorkingDir, "seed.iso"),
				EnvVars: env("SEED_OUTPUT"),
			},
		),
		Action: func(c *cli.Context) error {
			mode, params, err := autoinstallParams(c)
			if err != nil {
				return err
			}
			out, err := autoinstall.Render(mode, params)
			if err != nil {
				return err
			}
			output := c.String("output")
			if err := utils.CreateIfNotExists(vfs.OSFS, filepath.Dir(output)); err != nil {
				return err
			}
			f, err := vfs.OSFS.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := iso.CreateSeedISO(f, out); err != nil {
				return err
			}
			utils.Log.Info().Str("what", output).Msg("Seed image written")
			return nil
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(_ *cli.Context) error {
			v := version.Get()
			utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Str("ubuntu", v.UbuntuRelease).Msg("paranoidNAS media")
			return nil
		},
	},
}
