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
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tkemix"
	"github.com/spatialmodel/tkemix/device"
	"github.com/spatialmodel/tkemix/internal/hash"
	"github.com/spatialmodel/tkemix/science/tke"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

// Run runs a simulation as configured by cfg, logging to the standard
// output of cmd and to cfg.LogFile.
func Run(cmd *cobra.Command, cfg *RunConfig) error {
	logfile, err := os.Create(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("tkeutil: problem creating log file: %v", err)
	}
	defer logfile.Close()

	log := logrus.New()
	log.SetOutput(io.MultiWriter(cmd.OutOrStdout(), logfile))
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("tkeutil: %v", err)
	}
	log.SetLevel(level)

	start := time.Now()
	switch cfg.Precision {
	case "float32":
		err = runCase[float32](log, cfg)
	default:
		err = runCase[float64](log, cfg)
	}
	if err != nil {
		log.WithError(err).Error("run failed")
		return err
	}
	log.WithField("elapsed", time.Since(start)).Info("run finished")
	return nil
}

// launcher returns the kernel launcher selected by cfg and a function
// that releases it.
func launcher(cfg *RunConfig) (device.Launcher, func()) {
	switch cfg.Launcher {
	case "serial":
		return device.Serial{}, func() {}
	case "async":
		a := device.NewAsync(cfg.Workers)
		return a, a.Close
	default:
		return device.Pool{Workers: cfg.Workers}, func() {}
	}
}

// NewBackend creates the backend selected by cfg.
func NewBackend[T tke.Float](log logrus.FieldLogger, cfg *RunConfig, c tkemix.Constants[T]) (tkemix.Backend[T], func(), error) {
	opts := []tkemix.Option{tkemix.WithLogger(log)}
	release := func() {}
	switch tkemix.Kind(cfg.Backend) {
	case tkemix.KindCPU:
		opts = append(opts, tkemix.WithWorkers(cfg.Workers))
	case tkemix.KindGPU:
		var l device.Launcher
		l, release = launcher(cfg)
		dev := device.NewEmulated("emulated-"+cfg.Launcher, l, cfg.DeviceCapacity)
		opts = append(opts, tkemix.WithDevice(dev))
		if cfg.GroupSize > 0 {
			opts = append(opts, tkemix.WithGroupSize(cfg.GroupSize))
		}
	}
	b, err := tkemix.New(tkemix.Kind(cfg.Backend), c, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return b, release, nil
}

func runCase[T tke.Float](log logrus.FieldLogger, cfg *RunConfig) error {
	c, err := Constants[T](cfg)
	if err != nil {
		return err
	}
	var cs *Case[T]
	if cfg.InputFile != "" {
		log.WithField("file", cfg.InputFile).Info("reading case")
		if cs, err = ReadCase(cfg.InputFile, c); err != nil {
			return err
		}
		c = cs.Constants
	} else {
		if err := c.Validate(); err != nil {
			return err
		}
		log.Info("generating idealized case")
		cs = Idealized(c)
	}

	b, release, err := NewBackend(log, cfg, c)
	if err != nil {
		return err
	}
	defer release()
	defer b.Close()

	o, err := NewOutputter[T](cfg.OutputFile, cfg.OutputVariables, nil)
	if err != nil {
		return err
	}
	if err := o.Create(cs, hash.Fingerprint(cfg)); err != nil {
		return err
	}
	defer o.Close()

	type synchronizer interface{ Synchronize() }
	for step := 0; step < cfg.NumSteps; step++ {
		if err := cs.Calc(b); err != nil {
			return fmt.Errorf("tkeutil: step %d: %w", step, err)
		}
		if s, ok := b.(synchronizer); ok {
			s.Synchronize()
		}
		sum := Summarize(cs)
		log.WithFields(logrus.Fields{
			"step":         step + 1,
			"mean_tke":     sum.MeanTKE,
			"max_tke":      sum.MaxTKE,
			"max_residual": sum.MaxResidual,
		}).Info("completed time step")
		if err := o.Output(cs, float64(step+1)*cfg.Dtime); err != nil {
			return err
		}
	}
	if err := b.Close(); err != nil {
		return err
	}
	return o.Close()
}

// Summary holds statistics of the wet cells of a case.
type Summary struct {
	MeanTKE, MaxTKE float64

	// MaxResidual is the largest absolute difference between the total
	// tendency and the sum of the budget terms.
	MaxResidual float64
}

// Summarize returns statistics of the wet cells of cs.
func Summarize[T tke.Float](cs *Case[T]) Summary {
	var tkes, residuals []float64
	cv := &cs.CVMix
	for i, wet := range cs.Patch.WetC {
		if wet == 0 {
			continue
		}
		tkes = append(tkes, float64(cv.TKE[i]))
		sum := float64(cv.TKETbpr[i]) + float64(cv.TKETspr[i]) + float64(cv.TKETdif[i]) +
			float64(cv.TKETdis[i]) + float64(cv.TKETwin[i]) + float64(cv.TKETiwf[i]) +
			float64(cv.TKETbck[i])
		residuals = append(residuals, math.Abs(float64(cv.TKETtot[i])-sum))
	}
	if len(tkes) == 0 {
		return Summary{}
	}
	return Summary{
		MeanTKE:     floats.Sum(tkes) / float64(len(tkes)),
		MaxTKE:      floats.Max(tkes),
		MaxResidual: floats.Max(residuals),
	}
}
