/*
Copyright © 2023 the TKEmix authors.
This file is part of TKEmix.

TKEmix is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TKEmix is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TKEmix.  If not, see <http://www.gnu.org/licenses/>.
*/

package tkeutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"

	"github.com/ctessum/gobra"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/tkemix"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	run := runCmd.Flags()
	cfgCmd := configCmd.Flags()
	cs := caseCmd.Flags()

	// Options are the configuration options available to tkemix.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel sets the verbosity of the log: one of panic, fatal,
              error, warning, info, debug or trace.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile specifies the path to the NetCDF file where the time series of
              output variables is written. It can include environment variables.`,
			defaultVal: "tkemix_output.nc",
			shorthand:  "o",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which variables to write to the output file,
              as a map of output names to expressions of case variables.
              Expressions may use the functions exp, sqrt, abs, log10, max and min.`,
			defaultVal: map[string]string{
				"TKE":      "tke",
				"Kv":       "a_veloc_v",
				"KT":       "a_temp_v",
				"Lmix":     "tke_Lmix",
				"Residual": "tke_Ttot - (tke_Tbpr + tke_Tspr + tke_Tdif + tke_Tdis + tke_Twin + tke_Tiwf + tke_Tbck)",
			},
			flagsets: []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to a case file created by the case command.
              If it is empty, the idealized case is generated from the domain sizes.`,
			defaultVal: "",
			shorthand:  "i",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "CaseFile",
			usage: `
              CaseFile is the path where the case command writes the idealized case.`,
			defaultVal: "tkemix_case.nc",
			flagsets:   []*pflag.FlagSet{cs},
		},
		{
			name: "ParamsFile",
			usage: `
              ParamsFile is the path to an optional TOML file with a [TKE] table of
              closure parameters. Parameters that are not set keep their defaults.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "Backend",
			usage: `
              Backend selects the implementation that runs the closure: cpu or gpu.`,
			defaultVal: "cpu",
			shorthand:  "b",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "Launcher",
			usage: `
              Launcher selects how the gpu backend's emulated device executes
              kernels: serial, pool, or async.`,
			defaultVal: "pool",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines used by the cpu backend and by
              the pool and async launchers. Zero selects the number of processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "GroupSize",
			usage: `
              GroupSize is the number of execution units per group of a gpu launch.`,
			defaultVal: 128,
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "DeviceCapacity",
			usage: `
              DeviceCapacity is the memory of the emulated device in bytes.
              Zero means unlimited.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "Precision",
			usage: `
              Precision is the floating point type of the fields: float32 or float64.`,
			defaultVal: "float64",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of time steps to run.`,
			defaultVal: 10,
			shorthand:  "n",
			flagsets:   []*pflag.FlagSet{run, cfgCmd},
		},
		{
			name: "NProma",
			usage: `
              NProma is the number of columns per block.`,
			defaultVal: 25,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "NLevs",
			usage: `
              NLevs is the number of vertical levels.`,
			defaultVal: 40,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "NBlocks",
			usage: `
              NBlocks is the number of blocks of columns.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "VertCorType",
			usage: `
              VertCorType selects the vertical coordinate: 0 for z-level and
              1 for z*.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "IdemixTKE",
			usage: `
              IdemixTKE selects the internal wave coupling: 0 for none and 4 to
              add the internal wave dissipation to the TKE.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "Dtime",
			usage: `
              Dtime is the time step in seconds.`,
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "OceanReferenceDensity",
			usage: `
              OceanReferenceDensity is the reference density of sea water in kg/m³.`,
			defaultVal: 1025.022,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "Grav",
			usage: `
              Grav is the gravitational acceleration in m/s².`,
			defaultVal: 9.80665,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "LC",
			usage: `
              LC enables the Langmuir circulation parameterization.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "CLC",
			usage: `
              CLC is the Langmuir circulation coefficient.`,
			defaultVal: 0.15,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
		{
			name: "ReferencePressureIndbars",
			usage: `
              ReferencePressureIndbars converts depth in meters to pressure in
              decibars.`,
			defaultVal: 1035 * 9.80665 * 1.0e-4,
			flagsets:   []*pflag.FlagSet{run, cfgCmd, cs},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("TKEMIX")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(caseCmd)
	Root.AddCommand(configCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("tkemix: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// setConfigHandler loads the configuration file named in the "config" form
// value and responds with the resulting settings as JSON.
func setConfigHandler(log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			log.WithError(err).Error("parsing configuration form")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := Root.PersistentFlags().Set("config", r.Form.Get("config")); err != nil {
			log.WithError(err).Error("setting configuration file")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := setConfig(); err != nil {
			log.WithError(err).WithField("config", r.Form.Get("config")).Error("loading configuration")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		if err := json.NewEncoder(w).Encode(config); err != nil {
			log.WithError(err).Error("encoding configuration")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "tkemix",
	Short: "A turbulent kinetic energy vertical mixing closure for ocean models.",
	Long: `tkemix runs the TKE vertical mixing closure of an ocean model on a
single case, on the cpu or on an emulated accelerator device.
Use the subcommands specified below to access the model functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'TKEMIX_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of tkemix.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("tkemix v%s\n", tkemix.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the closure.",
	Long: `run advances the TKE closure on a case for NumSteps time steps and
writes the OutputVariables after every step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := NewRunConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, rc)
	},
	DisableAutoGenTag: true,
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Write the idealized case.",
	Long: `case writes the idealized case for the configured domain sizes to
CaseFile, which can be edited and then used as the InputFile of a run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc := &RunConfig{
			NProma:                   Cfg.GetInt("NProma"),
			NLevs:                    Cfg.GetInt("NLevs"),
			NBlocks:                  Cfg.GetInt("NBlocks"),
			VertCorType:              Cfg.GetInt("VertCorType"),
			IdemixTKE:                Cfg.GetInt("IdemixTKE"),
			Dtime:                    Cfg.GetFloat64("Dtime"),
			OceanReferenceDensity:    Cfg.GetFloat64("OceanReferenceDensity"),
			Grav:                     Cfg.GetFloat64("Grav"),
			LC:                       Cfg.GetBool("LC"),
			CLC:                      Cfg.GetFloat64("CLC"),
			ReferencePressureIndbars: Cfg.GetFloat64("ReferencePressureIndbars"),
		}
		c, err := Constants[float64](rc)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		caseFile, err := checkOutputFile(Cfg.GetString("CaseFile"))
		if err != nil {
			return err
		}
		if err := WriteCase(caseFile, Idealized(c)); err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", caseFile)
		return nil
	},
	DisableAutoGenTag: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the run configuration.",
	Long: `config prints the settings a run would use, after combining the
configuration file, environment variables and command-line arguments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := NewRunConfig(Cfg)
		if err != nil {
			return err
		}
		pretty.Fprintf(cmd.OutOrStdout(), "%# v\n", rc)
		return nil
	},
	DisableAutoGenTag: true,
}

// StartWebServer starts a web interface for the commands.
func StartWebServer() {
	log := logrus.StandardLogger()
	if err := setConfig(); err != nil {
		log.WithError(err).Warn("starting web interface without configuration file")
	}

	http.Handle("/setConfig", setConfigHandler(log))

	for _, cmd := range []*cobra.Command{Root, versionCmd, runCmd, caseCmd, configCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	const address = "localhost:7272"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>tkemix</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; }
	</style>
</head>
<body>
<div class="container">
	<h1>tkemix</h1>
	<p>Configure the run below.</p>
	<div>
		{{.}}
	</div>
</div>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	log.WithField("address", address).Info("server starting")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
}
