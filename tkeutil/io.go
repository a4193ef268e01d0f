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
	"math"
	"os"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/tkemix"
	"github.com/spatialmodel/tkemix/science/tke"
)

// Dimension names of case and output files.
const (
	dimTime   = "time"
	dimBlock  = "block"
	dimLevel  = "level"
	dimColumn = "column"
	dimSide   = "side"
)

func dimNames(s shape) []string {
	switch s {
	case shape3D:
		return []string{dimBlock, dimLevel, dimColumn}
	case shape2D:
		return []string{dimBlock, dimColumn}
	case shapeLevels:
		return []string{dimLevel}
	case shapeNeighbors:
		return []string{dimSide, dimBlock, dimColumn}
	default:
		panic("invalid shape")
	}
}

// WriteCase writes the inputs and outputs of cs to a NetCDF file.
func WriteCase[T tke.Float](fileName string, cs *Case[T]) error {
	c := &cs.Constants
	h := cdf.NewHeader(
		[]string{dimBlock, dimLevel, dimColumn, dimSide},
		[]int{c.NBlocks, c.NLevs, c.NProma, 2})
	h.AddAttribute("", "comment", "TKE vertical mixing case")
	h.AddAttribute("", "tkemix_version", tkemix.Version)

	var vars []variable[T]
	for _, v := range cs.variables() {
		if !v.input && !v.output {
			continue
		}
		if v.data != nil && *v.data == nil {
			continue // missing optional input
		}
		if v.ints != nil {
			h.AddVariable(v.name, dimNames(v.shape), []int32{0})
		} else {
			h.AddVariable(v.name, dimNames(v.shape), []float64{0})
		}
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
		vars = append(vars, v)
	}
	h.Define()

	ff, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("tkeutil: creating case file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("tkeutil: writing case header: %v", err)
	}
	for _, v := range vars {
		var data interface{}
		if v.ints != nil {
			data = *v.ints
		} else {
			data = toFloat64(*v.data)
		}
		if err := writeNCF(f, v.name, data); err != nil {
			return err
		}
	}
	return ff.Close()
}

func writeNCF(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("tkeutil: writing variable %s: %v", name, err)
	}
	return nil
}

func toFloat64[T tke.Float](s []T) []float64 {
	o := make([]float64, len(s))
	for i, v := range s {
		o[i] = float64(v)
	}
	return o
}

// ReadCase reads a case written by WriteCase. The domain sizes of c are
// replaced by those of the file; the rest of c is kept.
func ReadCase[T tke.Float](fileName string, c tkemix.Constants[T]) (*Case[T], error) {
	ff, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("tkeutil: opening case file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("tkeutil: reading case header from %s: %v", fileName, err)
	}

	dims := f.Header.Lengths("temp")
	if len(dims) != 3 {
		return nil, fmt.Errorf("tkeutil: case file %s has no 3D temp variable", fileName)
	}
	c.NBlocks, c.NLevs, c.NProma = dims[0], dims[1], dims[2]
	cs := NewCase(c)

	have := make(map[string]bool)
	for _, name := range f.Header.Variables() {
		have[name] = true
	}
	for _, v := range cs.variables() {
		if !v.input {
			continue
		}
		if !have[v.name] {
			if v.optional {
				*v.data = nil
				continue
			}
			return nil, fmt.Errorf("tkeutil: case file %s is missing variable %s", fileName, v.name)
		}
		if err := checkLengths(f.Header.Lengths(v.name), cs.dims(v.shape)); err != nil {
			return nil, fmt.Errorf("tkeutil: variable %s: %v", v.name, err)
		}
		r := f.Reader(v.name, nil, nil)
		buf := r.Zero(cs.size(v.shape))
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("tkeutil: reading variable %s: %v", v.name, err)
		}
		switch d := buf.(type) {
		case []int32:
			if v.ints == nil {
				return nil, fmt.Errorf("tkeutil: variable %s is integer, want floating point", v.name)
			}
			copy(*v.ints, d)
		case []float64:
			if v.data == nil {
				return nil, fmt.Errorf("tkeutil: variable %s is floating point, want integer", v.name)
			}
			for i, x := range d {
				(*v.data)[i] = T(x)
			}
		case []float32:
			if v.data == nil {
				return nil, fmt.Errorf("tkeutil: variable %s is floating point, want integer", v.name)
			}
			for i, x := range d {
				(*v.data)[i] = T(x)
			}
		default:
			return nil, fmt.Errorf("tkeutil: variable %s has unsupported type %T", v.name, buf)
		}
	}
	return cs, nil
}

func checkLengths(have, want []int) error {
	if len(have) != len(want) {
		return fmt.Errorf("have %d dimensions, want %d", len(have), len(want))
	}
	for i := range have {
		if have[i] != want[i] {
			return fmt.Errorf("have dimensions %v, want %v", have, want)
		}
	}
	return nil
}

// Outputter evaluates a set of expressions over the fields of a case and
// writes the results as a time series to a NetCDF file.
//
// outputVariables maps the names of the variables to write to
// expressions of case variables, for example
//
//	"Kv": "a_veloc_v"
//	"Residual": "tke_Ttot - (tke_Tbpr + tke_Tspr + tke_Tdif + tke_Tdis + tke_Twin + tke_Tiwf + tke_Tbck)"
//
// Expressions are evaluated for every cell. Two-dimensional variables
// are repeated over levels and level variables over columns.
type Outputter[T tke.Float] struct {
	fileName        string
	outputVariables map[string]string
	outputFunctions map[string]govaluate.ExpressionFunction

	names          []string
	expressions    map[string]*govaluate.EvaluableExpression
	modelVariables []string

	ff   *os.File
	f    *cdf.File
	step int
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: exp(x), sqrt(x), abs(x), log10(x), max(x, y) and
// min(x, y). Functions in outputFunctions override the defaults.
func NewOutputter[T tke.Float](fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter[T], error) {
	if len(outputVariables) == 0 {
		return nil, fmt.Errorf("tkeutil: there are no variables specified for output")
	}
	unary := func(name string, fn func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("tkeutil: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			x, ok := arg[0].(float64)
			if !ok {
				return nil, fmt.Errorf("tkeutil: invalid argument %v for function '%s'", arg[0], name)
			}
			return fn(x), nil
		}
	}
	binary := func(name string, fn func(x, y float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("tkeutil: got %d arguments for function '%s', but needs 2", len(arg), name)
			}
			x, ok1 := arg[0].(float64)
			y, ok2 := arg[1].(float64)
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("tkeutil: invalid arguments %v for function '%s'", arg, name)
			}
			return fn(x, y), nil
		}
	}
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":   unary("exp", math.Exp),
		"sqrt":  unary("sqrt", math.Sqrt),
		"abs":   unary("abs", math.Abs),
		"log10": unary("log10", math.Log10),
		"max":   binary("max", math.Max),
		"min":   binary("min", math.Min),
	}
	for k, v := range outputFunctions {
		funcs[k] = v
	}

	o := &Outputter[T]{
		fileName:        fileName,
		outputVariables: make(map[string]string),
		outputFunctions: funcs,
		expressions:     make(map[string]*govaluate.EvaluableExpression),
	}
	seen := make(map[string]bool)
	for name, expr := range outputVariables {
		expr = strings.Replace(expr, "\r\n", " ", -1)
		expr = strings.Replace(expr, "\n", " ", -1)
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("tkeutil: output variable %s: %v", name, err)
		}
		o.outputVariables[name] = expr
		o.expressions[name] = e
		o.names = append(o.names, name)
		for _, v := range e.Vars() {
			if !seen[v] {
				seen[v] = true
				o.modelVariables = append(o.modelVariables, v)
			}
		}
	}
	sort.Strings(o.names)
	sort.Strings(o.modelVariables)
	return o, nil
}

// checkModelVars returns an error if an expression refers to a variable
// that cs does not have.
func (o *Outputter[T]) checkModelVars(cs *Case[T]) (map[string]variable[T], error) {
	vars := make(map[string]variable[T])
	for _, v := range cs.variables() {
		vars[v.name] = v
	}
	used := make(map[string]variable[T])
	for _, name := range o.modelVariables {
		v, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("tkeutil: undefined variable name '%s'", name)
		}
		if v.shape == shapeNeighbors {
			return nil, fmt.Errorf("tkeutil: variable '%s' is defined on edge sides and cannot be output", name)
		}
		if v.data != nil && *v.data == nil {
			return nil, fmt.Errorf("tkeutil: variable '%s' is not set in this case", name)
		}
		used[name] = v
	}
	return used, nil
}

// Create checks that the output expressions can be evaluated on cs and
// creates the output file. configHash is stored as a global attribute.
func (o *Outputter[T]) Create(cs *Case[T], configHash string) error {
	if _, err := o.checkModelVars(cs); err != nil {
		return err
	}
	c := &cs.Constants
	h := cdf.NewHeader(
		[]string{dimTime, dimBlock, dimLevel, dimColumn},
		[]int{0, c.NBlocks, c.NLevs, c.NProma})
	h.AddAttribute("", "comment", "TKE vertical mixing output")
	h.AddAttribute("", "tkemix_version", tkemix.Version)
	h.AddAttribute("", "config_hash", configHash)
	h.AddVariable(dimTime, []string{dimTime}, []float64{0})
	h.AddAttribute(dimTime, "units", "s")
	for _, name := range o.names {
		h.AddVariable(name, []string{dimTime, dimBlock, dimLevel, dimColumn}, []float64{0})
		h.AddAttribute(name, "expression", o.outputVariables[name])
	}
	h.Define()

	ff, err := os.Create(o.fileName)
	if err != nil {
		return fmt.Errorf("tkeutil: creating output file: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return fmt.Errorf("tkeutil: writing output header: %v", err)
	}
	o.ff, o.f = ff, f
	return nil
}

// Results evaluates the output expressions on cs. Each result is laid out
// as [block][level][column].
func (o *Outputter[T]) Results(cs *Case[T]) (map[string][]float64, error) {
	used, err := o.checkModelVars(cs)
	if err != nil {
		return nil, err
	}
	c := &cs.Constants
	res := make(map[string]*sparse.DenseArray, len(o.names))
	for _, name := range o.names {
		res[name] = sparse.ZerosDense(c.NBlocks, c.NLevs, c.NProma)
	}
	model := make(map[string]*sparse.DenseArray, len(used))
	for name, v := range used {
		model[name] = cs.dense(v)
	}
	params := make(map[string]interface{}, len(used))
	for jb := 0; jb < c.NBlocks; jb++ {
		for k := 0; k < c.NLevs; k++ {
			for jc := 0; jc < c.NProma; jc++ {
				for name, v := range used {
					switch v.shape {
					case shape3D:
						params[name] = model[name].Get(jb, k, jc)
					case shape2D:
						params[name] = model[name].Get(jb, jc)
					case shapeLevels:
						params[name] = model[name].Get(k)
					}
				}
				for _, name := range o.names {
					r, err := o.expressions[name].Evaluate(params)
					if err != nil {
						return nil, fmt.Errorf("tkeutil: evaluating output variable %s: %v", name, err)
					}
					switch x := r.(type) {
					case float64:
						res[name].Set(x, jb, k, jc)
					case bool:
						if x {
							res[name].Set(1, jb, k, jc)
						}
					default:
						return nil, fmt.Errorf("tkeutil: output variable %s evaluates to %T, want a number", name, r)
					}
				}
			}
		}
	}
	out := make(map[string][]float64, len(res))
	for name, a := range res {
		out[name] = a.Elements
	}
	return out, nil
}

// dense copies the data of v into an array shaped like v.
func (cs *Case[T]) dense(v variable[T]) *sparse.DenseArray {
	a := sparse.ZerosDense(cs.dims(v.shape)...)
	if v.ints != nil {
		for i, x := range *v.ints {
			a.Elements[i] = float64(x)
		}
		return a
	}
	for i, x := range *v.data {
		a.Elements[i] = float64(x)
	}
	return a
}

// Output appends the results for cs at time t [s] to the output file.
func (o *Outputter[T]) Output(cs *Case[T], t float64) error {
	if o.f == nil {
		return fmt.Errorf("tkeutil: output file has not been created")
	}
	res, err := o.Results(cs)
	if err != nil {
		return err
	}
	c := &cs.Constants
	w := o.f.Writer(dimTime, []int{o.step}, []int{o.step + 1})
	if _, err := w.Write([]float64{t}); err != nil {
		return fmt.Errorf("tkeutil: writing time: %v", err)
	}
	for _, name := range o.names {
		w := o.f.Writer(name, []int{o.step, 0, 0, 0}, []int{o.step + 1, c.NBlocks, c.NLevs, c.NProma})
		if _, err := w.Write(res[name]); err != nil {
			return fmt.Errorf("tkeutil: writing output variable %s: %v", name, err)
		}
	}
	o.step++
	return nil
}

// Close finalizes the record count of the output file and closes it.
func (o *Outputter[T]) Close() error {
	if o.ff == nil {
		return nil
	}
	defer func() { o.ff, o.f = nil, nil }()
	if err := cdf.UpdateNumRecs(o.ff); err != nil {
		o.ff.Close()
		return fmt.Errorf("tkeutil: updating output record count: %v", err)
	}
	return o.ff.Close()
}
