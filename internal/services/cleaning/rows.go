package cleaning

import "CropCast/internal/domain/models"

// ToRows formats records back into canonical string rows using the Go date layout.
func ToRows(recs []models.CanonicalRecord, layout string) []models.CanonicalRow {
	out := make([]models.CanonicalRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.CanonicalRow{
			Date:       r.Date.Format(layout),
			State:      r.State,
			District:   r.District,
			Market:     r.Market,
			Commodity:  r.Commodity,
			Variety:    r.Variety,
			MinPrice:   r.MinPrice.StringFixed(2),
			MaxPrice:   r.MaxPrice.StringFixed(2),
			ModalPrice: r.ModalPrice.StringFixed(2),
		})
	}
	return out
}
