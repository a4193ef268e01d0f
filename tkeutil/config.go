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
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/tkemix"
	"github.com/spatialmodel/tkemix/science/tke"
	"github.com/spf13/cast"
)

// RunConfig holds the settings of a simulation.
type RunConfig struct {
	LogFile, LogLevel string

	// InputFile is a case file written by the case command. If it is
	// empty, the idealized case is used.
	InputFile string

	OutputFile      string
	OutputVariables map[string]string

	// ParamsFile is an optional TOML file with a [TKE] table of closure
	// parameters.
	ParamsFile string

	Backend   string // cpu or gpu
	Launcher  string // serial, pool or async
	Workers   int
	GroupSize int

	// DeviceCapacity is the memory of the emulated device [bytes]. Zero
	// means unlimited.
	DeviceCapacity int64

	Precision string // float32 or float64
	NumSteps  int

	NProma, NLevs, NBlocks int

	VertCorType, IdemixTKE int

	Dtime, OceanReferenceDensity, Grav float64
	LC                                 bool
	CLC, ReferencePressureIndbars      float64
}

// NewRunConfig reads the settings of a simulation from cfg.
func NewRunConfig(cfg *viper.Viper) (*RunConfig, error) {
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return nil, err
	}
	outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", cfg))
	if err != nil {
		return nil, err
	}
	rc := &RunConfig{
		LogFile:         checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), outputFile),
		LogLevel:        cfg.GetString("loglevel"),
		InputFile:       os.ExpandEnv(cfg.GetString("InputFile")),
		OutputFile:      outputFile,
		OutputVariables: outputVars,
		ParamsFile:      os.ExpandEnv(cfg.GetString("ParamsFile")),

		Backend:        strings.ToLower(cfg.GetString("Backend")),
		Launcher:       strings.ToLower(cfg.GetString("Launcher")),
		Workers:        cfg.GetInt("Workers"),
		GroupSize:      cfg.GetInt("GroupSize"),
		DeviceCapacity: cast.ToInt64(cfg.Get("DeviceCapacity")),

		Precision: strings.ToLower(cfg.GetString("Precision")),
		NumSteps:  cfg.GetInt("NumSteps"),

		NProma:  cfg.GetInt("NProma"),
		NLevs:   cfg.GetInt("NLevs"),
		NBlocks: cfg.GetInt("NBlocks"),

		VertCorType: cfg.GetInt("VertCorType"),
		IdemixTKE:   cfg.GetInt("IdemixTKE"),

		Dtime:                    cfg.GetFloat64("Dtime"),
		OceanReferenceDensity:    cfg.GetFloat64("OceanReferenceDensity"),
		Grav:                     cfg.GetFloat64("Grav"),
		LC:                       cfg.GetBool("LC"),
		CLC:                      cfg.GetFloat64("CLC"),
		ReferencePressureIndbars: cfg.GetFloat64("ReferencePressureIndbars"),
	}
	if err := rc.check(); err != nil {
		return nil, err
	}
	return rc, nil
}

func (rc *RunConfig) check() error {
	switch rc.Backend {
	case string(tkemix.KindCPU), string(tkemix.KindGPU):
	default:
		return fmt.Errorf("tkeutil: the Backend configuration variable needs to be set to "+
			"either cpu or gpu, but is currently set to `%s`", rc.Backend)
	}
	switch rc.Launcher {
	case "serial", "pool", "async":
	default:
		return fmt.Errorf("tkeutil: the Launcher configuration variable needs to be set to "+
			"either serial, pool, or async, but is currently set to `%s`", rc.Launcher)
	}
	switch rc.Precision {
	case "float32", "float64":
	default:
		return fmt.Errorf("tkeutil: the Precision configuration variable needs to be set to "+
			"either float32 or float64, but is currently set to `%s`", rc.Precision)
	}
	if rc.NumSteps < 0 {
		return fmt.Errorf("tkeutil: NumSteps must not be negative; have %d", rc.NumSteps)
	}
	return nil
}

// Constants returns the backend constants of rc, with the closure
// parameters read from ParamsFile if it is set.
func Constants[T tke.Float](rc *RunConfig) (tkemix.Constants[T], error) {
	c := tkemix.Constants[T]{
		NProma:                   rc.NProma,
		NLevs:                    rc.NLevs,
		NBlocks:                  rc.NBlocks,
		VertMixType:              tkemix.MixTKE,
		IdemixTKE:                tkemix.IdemixTKE(rc.IdemixTKE),
		VertCorType:              tkemix.VertCorType(rc.VertCorType),
		Dtime:                    T(rc.Dtime),
		OceanReferenceDensity:    T(rc.OceanReferenceDensity),
		Grav:                     T(rc.Grav),
		LC:                       rc.LC,
		CLC:                      T(rc.CLC),
		ReferencePressureIndbars: T(rc.ReferencePressureIndbars),
	}
	if rc.ParamsFile != "" {
		f, err := os.Open(rc.ParamsFile)
		if err != nil {
			return c, fmt.Errorf("tkeutil: opening parameter file: %v", err)
		}
		defer f.Close()
		p, err := tke.ReadParams[T](f)
		if err != nil {
			return c, fmt.Errorf("tkeutil: reading parameter file %s: %v", rc.ParamsFile, err)
		}
		c.Params = p
	}
	return c, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("tkeutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		return cast.ToStringMapString(v)
	case string:
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			panic(fmt.Errorf("tkeutil: invalid json for %s: %v", varName, err))
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
