package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is stamped at build time.
var Version = "dev"

// Execute runs the kra command line.
func Execute() error {
	cmd := NewRootCommand(afero.NewOsFs(), os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "kra:", err)
		return err
	}
	return nil
}

type app struct {
	v      *viper.Viper
	fs     afero.Fs
	stderr io.Writer
	logger zerolog.Logger
	closer io.Closer
	rt     *runtime
}

// NewRootCommand builds the command tree. Sessions are stored on fs; command
// output goes to stdout and logs to stderr.
func NewRootCommand(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), fs: fs, stderr: stderr, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "kra",
		Short: "Command-line client for the Kra file hosting API",
		Long: `kra talks to the Kra file hosting API.

Run "kra login" once; the session token is kept in ~/.kra/session and
reused by the other commands until "kra logout" or until the server
rejects it.

Every flag can also be set through the environment with the KRA_ prefix
(KRA_API_URL, KRA_TIMEOUT, ...) or in ~/.kra.yaml.

With --mode mock the commands run against an in-memory fake API, seeded
from --seed.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("kra version {{printf \"%s\" .Version}}\n")

	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		a.loginCommand(),
		a.infoCommand(),
		a.listCommand(),
		a.linkCommand(),
		a.mkdirCommand(),
		a.removeCommand(),
		a.statCommand(),
		a.logoutCommand(),
		a.versionCommand(),
	)
	return root
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "config file (default ~/.kra.yaml)")
	flags.String("api-url", "", "API base URL")
	flags.String("upload-url", "", "upload base URL")
	flags.Duration("timeout", 0, "per-request timeout (0 uses the HTTP client default)")
	flags.String("mode", modeHTTP, "runtime mode: http, mock or auto")
	flags.String("seed", "", "seed file for the mock runtime")
	flags.String("session-file", "", "session file (default ~/.kra/session)")
	flags.String("log-level", "warn", "log level")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := a.initConfig(a.v.GetString("config")); err != nil {
		return err
	}

	logger, closer, err := newLogger(a.stderr, a.v.GetString("log-level"), a.v.GetString("log-file"))
	if err != nil {
		return err
	}
	a.logger, a.closer = logger, closer

	a.logger.Debug().Str("config", a.v.ConfigFileUsed()).Msg("configuration loaded")
	for _, key := range a.v.AllKeys() {
		if key == "password" {
			continue
		}
		a.logger.Trace().Str("key", key).Interface("value", a.v.Get(key)).Msg("setting")
	}

	rt, err := a.newRuntime()
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

func (a *app) teardown() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *app) initConfig(cfgFile string) error {
	if cfgFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("resolve home: %w", err)
		}
		a.v.AddConfigPath(".")
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".kra")
		a.v.SetConfigType("yaml")
	} else {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("expand config path: %w", err)
		}
		a.v.SetConfigFile(path)
	}

	a.v.SetEnvPrefix("KRA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
