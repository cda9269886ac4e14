package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ADFResult is the outcome of an augmented Dickey-Fuller test with a constant.
type ADFResult struct {
	Statistic float64
	PValue    float64 // MacKinnon (1994) approximation
	UsedLag   int
	NObs      int
	Critical  map[string]float64 // "1%", "5%", "10%"; MacKinnon (2010)
}

// MacKinnon (1994) response surface for the constant-only case, one series.
const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}

	// MacKinnon (2010) critical value coefficients in powers of 1/nobs.
	tauCrit = map[string][]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.040},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
)

// DefaultMaxLag returns the Schwert rule 12*(n/100)^(1/4), capped so the
// regression keeps enough observations.
func DefaultMaxLag(n int) int {
	lag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 2; lag > limit {
		lag = limit
	}
	if lag < 0 {
		lag = 0
	}
	return lag
}

// ADF runs the augmented Dickey-Fuller unit root test on x with a constant
// term, regressing dy_t on (1, y_{t-1}, dy_{t-1} ... dy_{t-p}). The lag p is
// chosen in [0, maxLag] by minimum AIC over a common sample; a negative
// maxLag uses DefaultMaxLag.
func ADF(x []float64, maxLag int) (*ADFResult, error) {
	if maxLag < 0 {
		maxLag = DefaultMaxLag(len(x))
	}
	if len(x) < maxLag+4 {
		return nil, fmt.Errorf("%w: %d observations for max lag %d", ErrInsufficientData, len(x), maxLag)
	}

	dx := make([]float64, len(x)-1)
	for i := range dx {
		dx[i] = x[i+1] - x[i]
	}

	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		fit, err := adfRegression(x, dx, lag, maxLag)
		if err != nil {
			return nil, err
		}
		if fit.aic < bestAIC {
			bestLag, bestAIC = lag, fit.aic
		}
	}

	fit, err := adfRegression(x, dx, bestLag, bestLag)
	if err != nil {
		return nil, err
	}

	res := &ADFResult{
		Statistic: fit.tStat,
		PValue:    mackinnonP(fit.tStat),
		UsedLag:   bestLag,
		NObs:      fit.nobs,
		Critical:  make(map[string]float64, len(tauCrit)),
	}
	for level, coef := range tauCrit {
		res.Critical[level] = polyval(coef, 1/float64(fit.nobs))
	}
	return res, nil
}

type adfFit struct {
	tStat float64
	aic   float64
	nobs  int
}

// adfRegression fits dx[t] on (1, x[t], dx[t-1..t-lag]) for t in
// [start, len(dx)).
func adfRegression(x, dx []float64, lag, start int) (*adfFit, error) {
	nobs := len(dx) - start
	k := 2 + lag
	if nobs <= k {
		return nil, fmt.Errorf("%w: %d observations for %d regressors", ErrInsufficientData, nobs, k)
	}

	X := mat.NewDense(nobs, k, nil)
	y := mat.NewVecDense(nobs, nil)
	for r := 0; r < nobs; r++ {
		t := start + r
		y.SetVec(r, dx[t])
		X.Set(r, 0, 1)
		X.Set(r, 1, x[t])
		for j := 1; j <= lag; j++ {
			X.Set(r, 1+j, dx[t-j])
		}
	}

	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateSeries, err)
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(X, &beta)
	resid.SubVec(y, &fitted)
	rss := mat.Dot(&resid, &resid)
	if rss == 0 {
		return nil, fmt.Errorf("%w: perfect fit", ErrDegenerateSeries)
	}

	var xtx, inv mat.Dense
	xtx.Mul(X.T(), X)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateSeries, err)
	}

	n := float64(nobs)
	se := math.Sqrt(rss / float64(nobs-k) * inv.At(1, 1))
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(rss/n) + 1)

	return &adfFit{
		tStat: beta.AtVec(1) / se,
		aic:   -2*llf + 2*float64(k),
		nobs:  nobs,
	}, nil
}

// mackinnonP returns the approximate p-value of a Dickey-Fuller statistic.
func mackinnonP(stat float64) float64 {
	switch {
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	case stat <= tauStar:
		return distuv.UnitNormal.CDF(polyval(tauSmallP, stat))
	default:
		return distuv.UnitNormal.CDF(polyval(tauLargeP, stat))
	}
}

// polyval evaluates coef[0] + coef[1]*x + coef[2]*x^2 + ...
func polyval(coef []float64, x float64) float64 {
	v := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		v = v*x + coef[i]
	}
	return v
}
