package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/service"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrTooFewPoints = errors.New("too few points to fit")

// FitOptions tune the fitter. Zero values take the defaults of NewFitter.
type FitOptions struct {
	Mode           string
	IntervalWidth  float64
	Changepoints   int
	ChangepointEnd float64
	Regularization float64
	MinPoints      int
	YearlyOrder    int
	WeeklyOrder    int
}

// Fitter fits Models by ridge least squares.
type Fitter struct {
	opts FitOptions
	now  func() time.Time
}

var _ service.Fitter = (*Fitter)(nil)

type FitterOption func(*Fitter)

func WithFitOptions(o FitOptions) FitterOption {
	return func(f *Fitter) {
		if o.Mode != "" {
			f.opts.Mode = o.Mode
		}
		if o.IntervalWidth > 0 {
			f.opts.IntervalWidth = o.IntervalWidth
		}
		if o.Changepoints > 0 {
			f.opts.Changepoints = o.Changepoints
		}
		if o.ChangepointEnd > 0 {
			f.opts.ChangepointEnd = o.ChangepointEnd
		}
		if o.Regularization > 0 {
			f.opts.Regularization = o.Regularization
		}
		if o.MinPoints > 0 {
			f.opts.MinPoints = o.MinPoints
		}
		if o.YearlyOrder > 0 {
			f.opts.YearlyOrder = o.YearlyOrder
		}
		if o.WeeklyOrder > 0 {
			f.opts.WeeklyOrder = o.WeeklyOrder
		}
	}
}

// WithClock overrides the training timestamp source.
func WithClock(now func() time.Time) FitterOption {
	return func(f *Fitter) { f.now = now }
}

func NewFitter(opts ...FitterOption) *Fitter {
	f := &Fitter{
		opts: FitOptions{
			Mode:           ModeMultiplicative,
			IntervalWidth:  0.8,
			Changepoints:   25,
			ChangepointEnd: 0.8,
			Regularization: 0.1,
			MinPoints:      2,
			YearlyOrder:    10,
			WeeklyOrder:    3,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit trains a model on a clean series. Multiplicative mode falls back to
// additive when the series has a non-positive value.
func (f *Fitter) Fit(ctx context.Context, series models.TimeSeries) (service.Predictor, error) {
	return f.FitModel(ctx, series)
}

// FitModel is Fit with the concrete return type.
func (f *Fitter) FitModel(ctx context.Context, series models.TimeSeries) (*Model, error) {
	pts := series.Points
	if len(pts) < f.opts.MinPoints || len(pts) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrTooFewPoints, series.Key, len(pts))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &Model{
		Version:       ArtifactVersion,
		SeriesKey:     series.Key,
		Mode:          f.opts.Mode,
		Origin:        pts[0].Date,
		IntervalWidth: f.opts.IntervalWidth,
		YScale:        1,
		TrainedAt:     f.now().UTC(),
	}
	m.Span = pts[len(pts)-1].Date.Sub(m.Origin).Hours() / 24
	if m.Span <= 0 {
		m.Span = 1
	}

	y := make([]float64, len(pts))
	for i, p := range pts {
		y[i] = p.Value
		if p.Value <= 0 && m.Mode == ModeMultiplicative {
			m.Mode = ModeAdditive
		}
	}
	if m.Mode == ModeMultiplicative {
		for i := range y {
			y[i] = math.Log(y[i])
		}
	} else {
		for _, v := range y {
			m.YScale = math.Max(m.YScale, math.Abs(v))
		}
		for i := range y {
			y[i] /= m.YScale
		}
	}

	m.History = make([]time.Time, len(pts))
	for i, p := range pts {
		m.History[i] = p.Date
	}
	m.Changepoints = f.changepoints(m)
	m.Seasonalities = f.seasonalities(m)

	coef, sigma, err := f.solve(m, y)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", series.Key, err)
	}
	m.Coef = coef
	m.Sigma = sigma
	return m, nil
}

// changepoints spreads candidate trend breaks evenly over the first part of history.
func (f *Fitter) changepoints(m *Model) []float64 {
	n := len(m.History)
	hist := int(math.Floor(float64(n) * f.opts.ChangepointEnd))
	k := f.opts.Changepoints
	if k > hist-1 {
		k = hist - 1
	}
	if k <= 0 {
		return nil
	}
	out := make([]float64, 0, k)
	for i := 1; i <= k; i++ {
		idx := int(math.Round(float64(i) * float64(hist-1) / float64(k)))
		t := m.History[idx].Sub(m.Origin).Hours() / 24 / m.Span
		if len(out) > 0 && out[len(out)-1] == t {
			continue
		}
		out = append(out, t)
	}
	return out
}

// seasonalities enables yearly terms from two years of history and weekly terms
// from two weeks of sub-weekly data.
func (f *Fitter) seasonalities(m *Model) []Seasonality {
	var out []Seasonality
	if m.Span >= 730 && f.opts.YearlyOrder > 0 {
		out = append(out, Seasonality{Name: "yearly", Period: 365.25, Order: f.opts.YearlyOrder})
	}
	if m.Span >= 14 && f.opts.WeeklyOrder > 0 && m.Span/float64(len(m.History)-1) < 7 {
		out = append(out, Seasonality{Name: "weekly", Period: 7, Order: f.opts.WeeklyOrder})
	}
	return out
}

// solve computes ridge coefficients (X'X + λI)β = X'y, leaving the intercept
// and base slope unpenalised, and returns the residual standard deviation.
func (f *Fitter) solve(m *Model, y []float64) ([]float64, float64, error) {
	n, p := len(y), m.width()
	x := mat.NewDense(n, p, nil)
	row := make([]float64, p)
	for i, d := range m.History {
		m.features(d, row)
		x.SetRow(i, row)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	for j := 2; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+f.opts.Regularization)
	}
	// tiny jitter keeps a constant series solvable
	xtx.SetSym(0, 0, xtx.At(0, 0)+1e-9)
	xtx.SetSym(1, 1, xtx.At(1, 1)+1e-9)

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(n, y))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, 0, errors.New("normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, 0, fmt.Errorf("solve: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	for i := range y {
		resid[i] = y[i] - fitted.AtVec(i)
	}
	sigma := 0.0
	if n > 1 {
		sigma = stat.StdDev(resid, nil)
	}
	if math.IsNaN(sigma) {
		sigma = 0
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	return coef, sigma, nil
}
