package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jedib0t/go-pretty/text"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/services"
	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

type launcherApp struct {
	paths    fileutils.Paths
	versions *services.VersionStore
	loaders  *services.LoaderInstaller
	mods     *services.ModSynchronizer
	profiles *services.ProfileStore
	launcher *services.Launcher
}

func newLauncherApp(logger zerolog.Logger) (*launcherApp, error) {
	paths, err := fileutils.LoadPaths()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(logger)
	dl := fileutils.NewDownloader(client, logger)
	versions := services.NewVersionStore(client, dl, paths, logger)
	loaders := services.NewLoaderInstaller(client, dl, paths, logger)
	mods := services.NewModSynchronizer(client, dl, paths, logger)
	builder := services.NewCommandBuilder(paths, logger)
	super := services.NewSupervisor(logger)

	return &launcherApp{
		paths:    paths,
		versions: versions,
		loaders:  loaders,
		mods:     mods,
		profiles: services.NewProfileStore(paths, logger),
		launcher: services.NewLauncher(versions, loaders, mods, builder, super, paths, logger),
	}, nil
}

func percentBar(title string) (fileutils.ProgressFunc, func()) {
	bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithTitle(title).Start()
	last := 0
	return func(pct int) {
			if pct > last {
				bar.Add(pct - last)
				last = pct
			}
		}, func() {
			bar.Stop()
		}
}

func syncPrinter() services.SyncSink {
	return func(p util.SyncProgress) {
		if p.TotalMods > 0 {
			pterm.Info.Printf("[%s] %s (%d/%d)\n", p.Stage, p.CurrentMod, p.ProcessedMods, p.TotalMods)
		} else {
			pterm.Info.Printf("[%s] %s\n", p.Stage, p.CurrentMod)
		}
	}
}

func main() {
	level := zerolog.InfoLevel
	if os.Getenv("PACKFORGE_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	app := &cli.App{
		Name:  "packforge",
		Usage: "Install, synchronize and launch modded game clients",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Set up packforge against a game directory",
				Action: func(c *cli.Context) error {
					gameDir := c.Args().Get(0)
					if gameDir == "" {
						home, err := os.UserHomeDir()
						if err != nil {
							return err
						}
						gameDir = home + string(os.PathSeparator) + ".minecraft"
					}
					if _, err := fileutils.Setup(gameDir); err != nil {
						return err
					}
					pterm.Success.Println("Initialized against " + gameDir)
					return nil
				},
			},
			{
				Name:  "versions",
				Usage: "Manage game versions",
				Subcommands: []*cli.Command{
					{
						Name:  "ls",
						Usage: "List installed versions",
						Action: func(c *cli.Context) error {
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							for _, v := range a.versions.ListInstalled() {
								fmt.Println(v)
							}
							return nil
						},
					},
					{
						Name:  "install",
						Usage: "Install a game version",
						Action: func(c *cli.Context) error {
							version := c.Args().Get(0)
							if version == "" {
								return fmt.Errorf("usage: versions install <version>")
							}
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							progress, stop := percentBar("Installing " + version)
							defer stop()
							if err := a.versions.Install(c.Context, version, progress); err != nil {
								return err
							}
							pterm.Success.Println("Installed " + version)
							return nil
						},
					},
				},
			},
			{
				Name:  "loader",
				Usage: "Manage mod loaders",
				Subcommands: []*cli.Command{
					{
						Name:  "ls",
						Usage: "List available loader versions for a game version",
						Action: func(c *cli.Context) error {
							version := c.Args().Get(0)
							kind := util.ParseLoaderKind(c.Args().Get(1))
							if version == "" {
								return fmt.Errorf("usage: loader ls <version> <fabric|forge>")
							}
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							available, err := a.loaders.AvailableVersions(c.Context, version, kind)
							if err != nil {
								return err
							}
							if len(available) == 0 {
								pterm.Warning.Println("No loader versions published for " + version)
								return nil
							}
							for _, v := range available {
								fmt.Println(v)
							}
							return nil
						},
					},
					{
						Name:  "install",
						Usage: "Install a mod loader for a game version",
						Action: func(c *cli.Context) error {
							version := c.Args().Get(0)
							kind := util.ParseLoaderKind(c.Args().Get(1))
							if version == "" || kind == util.LoaderVanilla {
								return fmt.Errorf("usage: loader install <version> <fabric|forge>")
							}
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							progress, stop := percentBar(fmt.Sprintf("Installing %s for %s", kind, version))
							defer stop()
							if err := a.loaders.Install(c.Context, version, kind, progress); err != nil {
								return err
							}
							pterm.Success.Printf("Installed %s for %s\n", kind, version)
							return nil
						},
					},
				},
			},
			{
				Name:  "profile",
				Usage: "Manage launch profiles",
				Subcommands: []*cli.Command{
					{
						Name:  "make",
						Usage: "Create a profile: profile make <name> <version> [loader] [server]",
						Action: func(c *cli.Context) error {
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							profile, err := a.profiles.Create(util.Profile{
								Name:             c.Args().Get(0),
								MinecraftVersion: c.Args().Get(1),
								Loader:           util.ParseLoaderKind(c.Args().Get(2)),
								ServerAddress:    c.Args().Get(3),
							})
							if err != nil {
								return err
							}
							if err := a.profiles.SetActive(profile.Name); err != nil {
								return err
							}
							pterm.Success.Println("Created " + profile.Name)
							return nil
						},
					},
					{
						Name:    "ls",
						Aliases: []string{"list"},
						Usage:   "List profiles",
						Action: func(c *cli.Context) error {
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							profiles, err := a.profiles.List()
							if err != nil {
								return err
							}

							lname, lversion := len("NAME:"), len("VERSION:")
							for _, p := range profiles {
								if len(p.Name) > lname {
									lname = len(p.Name)
								}
								if len(p.MinecraftVersion) > lversion {
									lversion = len(p.MinecraftVersion)
								}
							}

							fmt.Println()
							fmt.Println(text.AlignDefault.Apply("NAME:", lname+2) + text.AlignDefault.Apply("VERSION:", lversion+2) + "LOADER:")
							for _, p := range profiles {
								fmt.Println(text.AlignDefault.Apply(text.Bold.Sprint(p.Name), lname+2) + text.AlignDefault.Apply(p.MinecraftVersion, lversion+2) + string(p.Loader))
							}
							fmt.Println()
							return nil
						},
					},
					{
						Name:    "rm",
						Aliases: []string{"remove"},
						Usage:   "Remove a profile",
						Action: func(c *cli.Context) error {
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							name := c.Args().Get(0)
							if err := a.profiles.Delete(name); err != nil {
								if err == services.ErrProfileNotFound {
									pterm.Warning.Println("No profile named " + name)
									return nil
								}
								return err
							}
							pterm.Success.Println("Removed " + name)
							return nil
						},
					},
					{
						Name:  "use",
						Usage: "Set the active profile",
						Action: func(c *cli.Context) error {
							a, err := newLauncherApp(logger)
							if err != nil {
								return err
							}
							return a.profiles.SetActive(c.Args().Get(0))
						},
					},
				},
			},
			{
				Name:  "sync",
				Usage: "Synchronize the active profile's mods with its server",
				Action: func(c *cli.Context) error {
					a, err := newLauncherApp(logger)
					if err != nil {
						return err
					}
					profile, err := a.profiles.Active()
					if err != nil {
						return err
					}
					if !strings.HasPrefix(profile.ServerAddress, "http") {
						return fmt.Errorf("profile %s has no mod sync url", profile.Name)
					}
					if err := a.mods.Sync(c.Context, profile, syncPrinter()); err != nil {
						return err
					}
					pterm.Success.Println("Mods in sync")
					return nil
				},
			},
			{
				Name:  "launch",
				Usage: "Launch the active profile: launch <username>",
				Action: func(c *cli.Context) error {
					username := c.Args().Get(0)
					if username == "" {
						return fmt.Errorf("usage: launch <username>")
					}
					a, err := newLauncherApp(logger)
					if err != nil {
						return err
					}
					profile, err := a.profiles.Active()
					if err != nil {
						return err
					}
					result, err := a.launcher.Launch(c.Context, profile, username, syncPrinter())
					if err != nil {
						return err
					}
					pterm.Success.Printf("Started %s (pid %d)\n", profile.Name, result.Pid)

					interrupt := make(chan os.Signal, 1)
					signal.Notify(interrupt, os.Interrupt)
					defer signal.Stop(interrupt)
					go func() {
						<-interrupt
						pterm.Warning.Println("Interrupted, stopping game")
						a.launcher.Kill()
					}()

					code, err := a.launcher.Wait()
					if err != nil {
						return err
					}
					if code != 0 {
						pterm.Warning.Printf("Game exited with code %d\n", code)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
