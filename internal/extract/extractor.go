package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/expand"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
	"github.com/hurou927/hydro-catalog/internal/netcdf"
	"github.com/hurou927/hydro-catalog/internal/pfb"
	"github.com/hurou927/hydro-catalog/internal/raster"
	"github.com/hurou927/hydro-catalog/internal/resolve"
)

// Extractor resolves a catalog entry from filter options and reads the
// matching files into one cropped tensor.
type Extractor struct {
	Handle   *catalog.Handle
	Resolver *resolve.Resolver
	Reader   *pfb.Reader
	Logger   logrus.FieldLogger
}

// New creates an Extractor over h.
func New(h *catalog.Handle, r *pfb.Reader, log logrus.FieldLogger) *Extractor {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if r == nil {
		r = &pfb.Reader{Logger: log}
	}
	return &Extractor{Handle: h, Resolver: resolve.New(h), Reader: r, Logger: log}
}

// Result is the outcome of one extraction.
type Result struct {
	Entry      *catalog.Row
	Request    expand.Request
	Paths      []string
	Constraint *bounds.Constraint
	Data       *ndarray.Tensor
	// TimeValues labels each step of the time dimension when the request
	// has a start time.
	TimeValues []string
}

// Plan is the resolved entry, request and file paths of a read, before any
// data file is opened.
type Plan struct {
	Entry    *catalog.Row
	Variable *catalog.Row
	Grid     *catalog.Row
	Request  expand.Request
	Paths    []string
}

// Plan resolves options to an entry and expands its file paths.
func (e *Extractor) Plan(ctx context.Context, options map[string]string) (*Plan, error) {
	req, err := expand.ParseRequest(options)
	if err != nil {
		return nil, err
	}
	entry, err := e.Resolver.MustOne(ctx, resolve.ParseFilter(options))
	if err != nil {
		return nil, err
	}
	m, err := e.Handle.Model(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := expand.Paths(entry, req)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.ID(), err)
	}
	return &Plan{
		Entry:    entry,
		Variable: lookup(m, "variable", entry.String("variable")),
		Grid:     lookup(m, "grid", strings.ToLower(entry.String("grid"))),
		Request:  req,
		Paths:    paths,
	}, nil
}

func lookup(m *catalog.Model, table, id string) *catalog.Row {
	t := m.Table(table)
	if t == nil || id == "" {
		return nil
	}
	return t.Row(id)
}

// Extract reads the data selected by options.
func (e *Extractor) Extract(ctx context.Context, options map[string]string) (*Result, error) {
	p, err := e.Plan(ctx, options)
	if err != nil {
		return nil, err
	}
	if err := expand.VerifyTimeInRange(p.Entry, p.Request); err != nil {
		return nil, err
	}

	log := e.Logger.WithFields(logrus.Fields{
		"entry":     p.Entry.ID(),
		"file_type": p.Entry.String("file_type"),
		"files":     len(p.Paths),
	})
	log.Debug("extracting")

	res := &Result{Entry: p.Entry, Request: p.Request, Paths: p.Paths}
	switch ft := p.Entry.String("file_type"); ft {
	case "pfb":
		err = e.readPFB(ctx, p, res)
	case "C.pfb":
		err = e.readCPFB(ctx, p, res)
	case "netcdf":
		err = e.readNetCDF(p, res)
	case "tif", "tiff":
		err = e.readTIFF(p, res)
	default:
		err = fmt.Errorf("File type '%s' is not supported yet.", ft)
	}
	if err != nil {
		return nil, err
	}

	if p.Entry.String("structure_type") == "gridded" {
		hasZ := p.Variable != nil && strings.EqualFold(p.Variable.String("has_z"), "true")
		hasEnsemble := strings.EqualFold(p.Entry.String("has_ensemble"), "true")
		res.Data = AdjustDimensions(res.Data, p.Entry.String("period"), hasZ, hasEnsemble)
		if res.TimeValues == nil && p.Request.Start != nil && timed(p.Entry.String("period")) {
			axis := 0
			if hasEnsemble {
				axis = 1
			}
			if res.Data.Rank() > axis {
				res.TimeValues = expand.StepValues(p.Entry.String("period"), *p.Request.Start, res.Data.Shape[axis])
			}
		}
	}
	log.WithField("shape", res.Data.Shape).Debug("extracted")
	return res, nil
}

func missing(paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("File %s does not exist.", p)
		}
	}
	return nil
}

func (e *Extractor) readPFB(ctx context.Context, p *Plan, res *Result) error {
	if err := missing(p.Paths); err != nil {
		return err
	}
	c, err := expand.Boundary(p.Grid, p.Request)
	if err != nil {
		return err
	}
	if c, err = expand.AddTimeAxis(c, p.Entry, p.Variable, p.Grid, p.Request); err != nil {
		return err
	}
	res.Constraint = c
	res.Data, err = e.Reader.ReadFiles(ctx, p.Paths, c)
	return err
}

func (e *Extractor) readCPFB(ctx context.Context, p *Plan, res *Result) error {
	c, err := expand.Boundary(p.Grid, p.Request)
	if err != nil {
		return err
	}
	if c, err = expand.CPFBConstraint(c, p.Entry, p.Variable, p.Grid, p.Request); err != nil {
		return err
	}
	if err := missing(p.Paths); err != nil {
		return err
	}
	res.Constraint = c
	res.Data, err = e.Reader.ReadFiles(ctx, p.Paths, c)
	return err
}

func (e *Extractor) readNetCDF(p *Plan, res *Result) error {
	if len(p.Paths) == 0 {
		return fmt.Errorf("No file path found for %s", p.Entry.ID())
	}
	path, err := netcdf.MatchWildcard(p.Paths[0])
	if err != nil {
		return err
	}
	if err := missing([]string{path}); err != nil {
		return err
	}
	c, err := expand.Boundary(p.Grid, p.Request)
	if err != nil {
		return err
	}
	res.Constraint = c
	res.Paths = []string{path}
	res.Data, res.TimeValues, err = netcdf.ReadVariable(path, p.Entry.String("dataset_var"), netcdf.Selection{
		Period:    p.Entry.String("period"),
		Start:     p.Request.Start,
		End:       p.Request.End,
		RunNumber: p.Request.RunNumber,
		Z:         p.Request.Z,
		Box:       c,
	})
	return err
}

func (e *Extractor) readTIFF(p *Plan, res *Result) error {
	if len(p.Paths) == 0 {
		return fmt.Errorf("No file path found for %s", p.Entry.ID())
	}
	path := p.Paths[0]
	if err := missing([]string{path}); err != nil {
		return err
	}
	c, err := expand.Boundary(p.Grid, p.Request)
	if err != nil {
		return err
	}
	res.Constraint = c
	res.Paths = []string{path}
	res.Data, err = raster.ReadTIFF(path, c)
	return err
}

// Summary returns report lines describing the result.
func (r *Result) Summary() []string {
	lines := []string{
		fmt.Sprintf("  entry: %s (%s %s %s %s)", r.Entry.ID(), r.Entry.String("dataset"),
			r.Entry.String("variable"), r.Entry.String("period"), r.Entry.String("file_type")),
		fmt.Sprintf("  files: %d", len(r.Paths)),
		fmt.Sprintf("  window: %s", r.Constraint),
	}
	if r.Data != nil {
		lines = append(lines,
			fmt.Sprintf("  shape: %v (%s)", r.Data.Shape, humanize.Bytes(uint64(r.Data.Len())*8)),
			fmt.Sprintf("  values: %s", r.Data.Summary()),
		)
	}
	if n := len(r.TimeValues); n > 0 {
		lines = append(lines, fmt.Sprintf("  time: %s .. %s", r.TimeValues[0], r.TimeValues[n-1]))
	}
	return lines
}
