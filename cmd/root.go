// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variable of every flag, so --raw-prefix
// is read from BOVESPA_RAW_PREFIX.
const envPrefix = "BOVESPA"

var (
	// Version and BuildTime are set at build time with
	// -ldflags "-X github.com/pilosa/bovespa/cmd.Version=..."
	Version   string
	BuildTime string
)

func versionString() string {
	v, b := Version, BuildTime
	if v == "" {
		v = "v0.0.0"
	}
	if b == "" {
		b = "not recorded"
	}
	return fmt.Sprintf("%s (built %s)", v, b)
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand creates the bovespa command with every registered
// subcommand under it.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:     "bovespa",
		Short:   "extract and refine the daily IBOVESPA composition",
		Version: versionString(),
		Long: `bovespa keeps a refined, catalogued copy of the IBOVESPA index
composition published by B3.

  extract   download today's composition into a dated raw snapshot
  refine    rebuild the refined partition for today from every snapshot
  schedule  extract then refine once a day
  trigger   refine for one storage event read from a file or stdin
  listen    refine for each storage event on a Kafka topic
  serve     refine for each storage event POSTed over HTTP
  history   print recorded run results

Flags may also come from ` + envPrefix + `_ environment variables (upper
case, dashes as underscores) or from a TOML file given with --config.
Command line flags win over the environment, which wins over the file.
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags(), envPrefix)
		},
	}
	rc.PersistentFlags().String("config", "", "TOML configuration file.")
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// setAllConfig fills every flag in flags that was not given on the command
// line, first from the environment and then from the --config file. Flags
// keep their defaults when neither source sets them.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading configuration file '%s'", c)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		// Setting a slice flag that was given on the command line again
		// would append to it.
		if flagErr != nil || f.Changed {
			return
		}
		if err := f.Value.Set(configValue(v, f)); err != nil {
			flagErr = errors.Wrapf(err, "setting %s", f.Name)
		}
	})
	return flagErr
}

// configValue is the string form of f's configured value. A list from the
// TOML file comes back empty from GetString, so slices are joined instead.
func configValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return v.GetString(f.Name)
}
