// Package kde implements the FFT-based kernel density threshold used
// to pick a minimum-barcode-reads cutoff for matrix filtering in
// single-cell (scrna) mode (component H).
package kde

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Mode selects the safety-clamp range applied to the computed
// threshold (4.H step 8).
type Mode int

const (
	ModeBead Mode = iota
	ModeJaccard
)

const (
	nUser     = 10000
	bandwidth = 0.1
)

// Threshold runs the full KDE pipeline over counts (raw, untransformed
// per-barcode totals) and returns (safety, raw) per 4.H: raw is the
// unclamped 10^x threshold the density estimate picked; safety is raw
// unless it falls outside mode's valid range, in which case it is
// replaced by mode's fallback constant.
func Threshold(counts []float64, mode Mode) (safety, raw float64, err error) {
	if len(counts) == 0 {
		return 0, 0, errors.New("kde: no data")
	}

	data := make([]float64, len(counts))
	for i, c := range counts {
		if c <= 0 {
			return 0, 0, errors.Errorf("kde: non-positive count %v cannot be log10-transformed", c)
		}
		data[i] = math.Log10(c)
	}

	data = filterTrailingMode(data)
	if len(data) == 0 {
		return 0, 0, errors.New("kde: all data dropped by mode filter")
	}
	lo, hi := minMax(data)

	n := nextPow2(nUser)
	xords, kords := fftDensity(data, lo, hi, n)

	density, xs := interpolate(xords, kords, lo, hi, nUser)
	minima := findLocalMinima(density)

	x, found := pickThreshold(minima, xs, nUser)
	if !found {
		return 0, 0, nil
	}
	raw = math.Pow(10, x)
	safety = clamp(raw, mode)
	return safety, raw, nil
}

// filterTrailingMode drops every value, scanning from the smallest
// upward, that is <= the primary mode minus 3 (4.H step 1: "one
// thousandth of the mode's count in linear space" after log10, a
// subtraction of 3 log10 units).
func filterTrailingMode(data []float64) []float64 {
	sorted := append([]float64(nil), data...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	threshold := mode(sorted) - 3
	i := len(sorted)
	for i > 0 && sorted[i-1] <= threshold {
		i--
	}
	return sorted[:i]
}

// mode returns the most frequent value in a descending-sorted slice,
// breaking ties toward the first (largest) mode encountered, matching
// KDE::get_min_mode.
func mode(sortedDesc []float64) float64 {
	minMode := sortedDesc[len(sortedDesc)-1]
	count, maxCount := 1, 1
	prev := minMode
	for i := len(sortedDesc) - 2; i >= 0; i-- {
		v := sortedDesc[i]
		if v == prev {
			count++
			if maxCount <= count {
				maxCount = count
				minMode = v
			}
		} else {
			count = 1
		}
		prev = v
	}
	return minMode
}

func minMax(data []float64) (lo, hi float64) {
	lo, hi = data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func nextPow2(x int) int {
	p := 1
	for p < x {
		p *= 2
	}
	return p
}

// fftDensity bins data into n buckets between xlo=lo-4h, xhi=hi+4h with
// linear interpolation (4.H step 3), builds the mirrored real Gaussian
// kernel (step 4), and runs the forward/conjugate-multiply/inverse FFT
// described in step 5, returning the grid xords and density kords (both
// length n).
func fftDensity(data []float64, lo, hi float64, n int) (xords, kords []float64) {
	xlo := lo - 4*bandwidth
	xhi := hi + 4*bandwidth
	padLen := 2 * n

	binned := make([]complex128, padLen)
	w := 1.0 / float64(len(data))
	xdelta := (xhi - xlo) / float64(n-1)
	ixmax := n - 2
	for _, x := range data {
		xpos := (x - xlo) / xdelta
		ix := int(math.Floor(xpos))
		fx := xpos - float64(ix)
		switch {
		case ix >= 0 && ix <= ixmax:
			binned[ix] += complex((1-fx)*w, 0)
			binned[ix+1] += complex(fx*w, 0)
		case ix == ixmax+1:
			binned[ix] += complex((1-fx)*w, 0)
		}
	}

	diff := 2 * (xhi - xlo) / float64(padLen-1)
	kernel := make([]complex128, padLen)
	for i := 0; i <= n; i++ {
		x := float64(i) * diff
		kernel[i] = complex(gaussPDF(x), 0)
	}
	for i := n + 1; i < padLen; i++ {
		kernel[i] = kernel[padLen-i]
	}

	fft := fourier.NewCmplxFFT(padLen)
	dataFFT := fft.Coefficients(nil, binned)
	kernelFFT := fft.Coefficients(nil, kernel)

	product := make([]complex128, padLen)
	for i := range product {
		a, b := real(kernelFFT[i]), imag(kernelFFT[i])
		c, d := real(dataFFT[i]), imag(dataFFT[i])
		product[i] = complex(a*c+b*d, a*d-b*c)
	}

	inverse := fft.Sequence(nil, product)

	diffNew := (xhi - xlo) / float64(n-1)
	xords = make([]float64, n)
	kords = make([]float64, n)
	for i := 0; i < n; i++ {
		v := real(inverse[i]) / float64(padLen)
		if v < 0 {
			v = 0
		}
		kords[i] = v
		xords[i] = xlo + diffNew*float64(i)
	}
	return xords, kords
}

func gaussPDF(x float64) float64 {
	const invSqrt2Pi = 0.3989422804014327
	z := x / bandwidth
	return math.Exp(-0.5*z*z) / bandwidth * invSqrt2Pi
}

// interpolate linearly re-samples the (xords,kords) density grid to
// nUser evaluation points between lo and hi (4.H step 6).
func interpolate(xords, kords []float64, lo, hi float64, nUser int) (density, xs []float64) {
	density = make([]float64, nUser)
	xs = make([]float64, nUser)
	xlo := lo - 4*bandwidth
	xordsDiff := xords[1] - xords[0]
	step := (hi - lo) / float64(nUser-1)

	for i := 0; i < nUser; i++ {
		x := lo + step*float64(i)
		xs[i] = x
		idx := int(math.Round((x - xlo) / xordsDiff))
		if idx <= 0 {
			idx = 1
		}
		if idx >= len(kords) {
			idx = len(kords) - 1
		}
		d := kords[idx-1] + (kords[idx]-kords[idx-1])*(x-xords[idx-1])/(xords[idx]-xords[idx-1])
		density[i] = d
	}
	return density, xs
}

// findLocalMinima locates every sign change of the discrete derivative
// of density, then keeps every other one (starting from a phase
// determined by the sign of the first derivative), per 4.H step 7.
func findLocalMinima(density []float64) []int {
	var candidates []int
	flag := 0
	if len(density) > 1 && density[1]-density[0] > 0 {
		flag = 1
	}
	for i := 1; i < len(density)-1; i++ {
		if (density[i]-density[i-1])*(density[i+1]-density[i]) < 0 {
			candidates = append(candidates, i)
		}
	}

	if len(candidates) <= 2 {
		return candidates
	}
	var minima []int
	for i := 0; i < len(candidates)/2; i++ {
		idx := 2*i + flag
		if idx >= len(candidates) {
			break
		}
		minima = append(minima, candidates[idx])
	}
	return minima
}

// pickThreshold scans minima from the largest index backward and
// returns the x value of the first one satisfying index >= 0.2*n_user
// and either (max-x) > 0.5 or x < max/2, per 4.H step 7.
func pickThreshold(minima []int, xs []float64, nUser int) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	max := xs[len(xs)-1]
	for i := len(minima) - 1; i >= 0; i-- {
		idx := minima[i]
		x := xs[idx]
		if float64(idx) >= 0.2*float64(nUser) && (max-x > 0.5 || x < max/2) {
			return x, true
		}
	}
	return 0, false
}

// clamp implements 4.H step 8's per-mode safety range.
func clamp(threshold float64, mode Mode) float64 {
	switch mode {
	case ModeBead:
		if threshold < 100 || threshold > 100000 {
			return 500
		}
	case ModeJaccard:
		if threshold < 1e-6 || threshold > 0.5 {
			return 5e-3
		}
	}
	return threshold
}
