// Package forecast fits a seasonal additive model per category and predicts future demand.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/Veraticus/demandflow/internal/common"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	daysPerYear  = 365.25
	trendPenalty = 1e-8
	secondsInDay = 86400
)

// Options tune the seasonal additive model.
type Options struct {
	// YearlyOrder is the number of Fourier pairs describing yearly seasonality.
	YearlyOrder int `mapstructure:"yearly_order" validate:"min=1,max=50"`
	// SeasonalityPriorScale is the prior standard deviation of the seasonal coefficients.
	SeasonalityPriorScale float64 `mapstructure:"seasonality_prior_scale" validate:"gt=0"`
	// IntervalWidth is the coverage of the uncertainty interval.
	IntervalWidth float64 `mapstructure:"interval_width" validate:"gt=0,lt=1"`
}

// DefaultOptions returns yearly order 10, prior scale 10 and an 80% interval.
func DefaultOptions() Options {
	return Options{
		YearlyOrder:           10,
		SeasonalityPriorScale: 10,
		IntervalWidth:         0.8,
	}
}

// Prediction is the model output at one timestamp.
type Prediction struct {
	Timestamp time.Time
	Yhat      float64
	Lower     float64
	Upper     float64
}

// Model is a fitted linear trend plus yearly seasonality.
// The seasonal order is reduced when the history is too short to support it.
type Model struct {
	start    time.Time
	chol     mat.Cholesky
	coef     *mat.VecDense
	opts     Options
	span     float64
	scale    float64
	sigma    float64
	z        float64
	order    int
	features int
}

// Fit estimates the model from a history of (timestamp, value) observations.
func Fit(times []time.Time, values []float64, opts Options) (*Model, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps for %d values", common.ErrModelFit, len(times), len(values))
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", common.ErrModelFit, len(times))
	}
	if opts.YearlyOrder < 1 || opts.SeasonalityPriorScale <= 0 || opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		return nil, fmt.Errorf("%w: invalid model options %+v", common.ErrModelFit, opts)
	}

	order := seasonalOrder(len(times), opts.YearlyOrder)
	m := &Model{
		opts:     opts,
		start:    times[0],
		order:    order,
		features: 2 + 2*order,
	}
	end := times[0]
	for i, t := range times {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return nil, fmt.Errorf("%w: non-finite value at %s", common.ErrModelFit, t.Format(time.DateOnly))
		}
		if t.Before(m.start) {
			m.start = t
		}
		if t.After(end) {
			end = t
		}
	}
	m.scale = maxAbs(values)
	m.span = end.Sub(m.start).Seconds() / secondsInDay
	if m.span <= 0 {
		m.span = 1
	}

	n := len(times)
	x := mat.NewDense(n, m.features, nil)
	y := mat.NewVecDense(n, nil)
	for i, t := range times {
		x.SetRow(i, m.row(t))
		y.SetVec(i, values[i]/m.scale)
	}

	var a mat.SymDense
	a.SymOuterK(1, x.T())
	prior := 1 / (opts.SeasonalityPriorScale * opts.SeasonalityPriorScale)
	for j := 0; j < m.features; j++ {
		penalty := prior
		if j < 2 {
			penalty = trendPenalty
		}
		a.SetSym(j, j, a.At(j, j)+penalty)
	}

	if ok := m.chol.Factorize(&a); !ok {
		return nil, fmt.Errorf("%w: normal equations are not positive definite", common.ErrModelFit)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)
	m.coef = mat.NewVecDense(m.features, nil)
	if err := m.chol.SolveVecTo(m.coef, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelFit, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, m.coef)
	var sse float64
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		sse += r * r
	}
	// residual degrees of freedom net of the ridge fit's effective parameters
	dof := math.Max(float64(n)-m.effectiveParams(x), 1)
	m.sigma = math.Sqrt(sse / dof)
	m.z = distuv.UnitNormal.Quantile(0.5 + opts.IntervalWidth/2)

	return m, nil
}

// seasonalOrder caps the Fourier order so the model keeps fewer features than
// observations. A short history gets a trend only.
func seasonalOrder(n, yearly int) int {
	return max(min(yearly, (n-3)/2), 0)
}

// effectiveParams is tr(X A⁻¹ Xᵀ), the sum of the observations' leverages.
func (m *Model) effectiveParams(x *mat.Dense) float64 {
	n, _ := x.Dims()
	var solved mat.VecDense
	var trace float64
	for i := 0; i < n; i++ {
		row := mat.VecDenseCopyOf(x.RowView(i))
		if err := m.chol.SolveVecTo(&solved, row); err != nil {
			return float64(m.features)
		}
		trace += mat.Dot(row, &solved)
	}
	return trace
}

// Predict returns the point estimate and interval at each timestamp.
func (m *Model) Predict(times []time.Time) ([]Prediction, error) {
	out := make([]Prediction, len(times))
	var solved mat.VecDense
	for i, t := range times {
		row := mat.NewVecDense(m.features, m.row(t))
		yhat := mat.Dot(row, m.coef)

		if err := m.chol.SolveVecTo(&solved, row); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrModelFit, err)
		}
		leverage := math.Max(0, mat.Dot(row, &solved))
		half := m.z * m.sigma * math.Sqrt(1+leverage)

		out[i] = Prediction{
			Timestamp: t,
			Yhat:      yhat * m.scale,
			Lower:     (yhat - half) * m.scale,
			Upper:     (yhat + half) * m.scale,
		}
	}
	return out, nil
}

// Sigma is the residual standard deviation in the units of the input values.
func (m *Model) Sigma() float64 {
	return m.sigma * m.scale
}

// row builds the design row: intercept, scaled time, then sin/cos pairs per yearly order.
func (m *Model) row(t time.Time) []float64 {
	r := make([]float64, m.features)
	r[0] = 1
	r[1] = t.Sub(m.start).Seconds() / secondsInDay / m.span

	days := float64(t.Unix()) / secondsInDay
	for k := 1; k <= m.order; k++ {
		angle := 2 * math.Pi * float64(k) * days / daysPerYear
		r[2*k] = math.Sin(angle)
		r[2*k+1] = math.Cos(angle)
	}
	return r
}

func maxAbs(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return 1
	}
	return peak
}
