package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"media-tagger/internal/startup"
)

const (
	flagEnvFile     = "env-file"
	flagDatabaseDir = "database-dir"
	flagStore       = "store"
	flagLogLevel    = "log-level"
	flagWorkers     = "workers"
)

// newRootCmd builds the command tree. Every subcommand shares one viper
// instance so flags, environment and .env values resolve the same way.
func newRootCmd() *cobra.Command {
	v := startup.NewViper()

	root := &cobra.Command{
		Use:           "media-tagger",
		Short:         "Background thumbnail generation for the media-tagger file catalog",
		SilenceUsage:  true,
		Version:       startup.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, err := cmd.Flags().GetString(flagEnvFile)
			if err != nil {
				return err
			}
			return startup.LoadEnvFile(envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagEnvFile, ".env", "load environment variables from this file if it exists")
	flags.String(flagDatabaseDir, "", "directory for the catalog and thumbnail store ($DATABASE_DIR)")
	flags.String(flagStore, "", "thumbnail store backend, sqlite or pebble ($STORE_BACKEND)")
	flags.String(flagLogLevel, "", "debug, info, warn or error ($LOG_LEVEL)")
	flags.Int(flagWorkers, 0, "number of thumbnail workers, 0 for one per CPU ($THUMBNAIL_WORKERS)")

	bindFlag(v, startup.KeyDatabaseDir, root, flagDatabaseDir)
	bindFlag(v, startup.KeyStoreBackend, root, flagStore)
	bindFlag(v, startup.KeyLogLevel, root, flagLogLevel)
	bindFlag(v, startup.KeyWorkers, root, flagWorkers)

	root.AddCommand(newServeCmd(v), newGenerateCmd(v), newStatsCmd(v), newVersionCmd())
	return root
}

// bindFlag lets an explicitly set flag override the environment for key.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	flag := cmd.PersistentFlags().Lookup(name)
	if flag == nil {
		flag = cmd.Flags().Lookup(name)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			cmd.Printf("Version:    %s\nCommit:     %s\nBuild Time: %s\nGo:         %s %s/%s\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}
