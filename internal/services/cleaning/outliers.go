package cleaning

import (
	"sort"

	"CropCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// minOutlierPoints is the smallest series for which quartiles are meaningful.
const minOutlierPoints = 4

// Bounds returns the Tukey fences [q1-k*iqr, q3+k*iqr] of values.
func Bounds(values []float64, k float64) (lo, hi float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

type fence struct{ lo, hi float64 }

func (f fence) excludes(r models.CanonicalRecord) bool {
	v := r.ModalPrice.InexactFloat64()
	return v < f.lo || v > f.hi
}

// fences computes per-key bounds for keys with enough points.
func (c *Cleaner) fences(recs []models.CanonicalRecord) map[models.SeriesKey]fence {
	byKey := make(map[models.SeriesKey][]float64)
	for _, r := range recs {
		byKey[r.Key()] = append(byKey[r.Key()], r.ModalPrice.InexactFloat64())
	}
	out := make(map[models.SeriesKey]fence, len(byKey))
	for k, vals := range byKey {
		if len(vals) < minOutlierPoints {
			continue
		}
		lo, hi := Bounds(vals, c.opts.IQRFactor)
		out[k] = fence{lo, hi}
	}
	return out
}

// outliers flags modal prices outside the per-key fences. When dropping, the
// fences are recomputed on the survivors until nothing more falls outside, so
// the result is stable under another pass.
func (c *Cleaner) outliers(recs []models.CanonicalRecord, report *models.CleaningReport) []models.CanonicalRecord {
	if !c.opts.DropOutliers {
		fs := c.fences(recs)
		for i, r := range recs {
			if f, ok := fs[r.Key()]; ok && f.excludes(r) {
				report.Flag(models.ReasonOutlier, 1)
				recs[i].Flags = append(r.Flags, models.ReasonOutlier)
			}
		}
		return recs
	}

	for {
		fs := c.fences(recs)
		out := recs[:0]
		dropped := 0
		for _, r := range recs {
			if f, ok := fs[r.Key()]; ok && f.excludes(r) {
				report.Flag(models.ReasonOutlier, 1)
				report.Drop(models.ReasonOutlier)
				dropped++
				continue
			}
			out = append(out, r)
		}
		recs = out
		if dropped == 0 {
			return recs
		}
	}
}
