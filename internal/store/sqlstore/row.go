package sqlstore

import (
	"math"

	"wbi/internal/model"
)

type pointRow struct {
	IndicatorID   string   `db:"indicator_id"`
	IndicatorName string   `db:"indicator_name"`
	CountryID     string   `db:"country_id"`
	CountryName   string   `db:"country_name"`
	CountryISO3   string   `db:"country_iso3"`
	Year          int      `db:"year"`
	Value         *float64 `db:"value"`
	Unit          *string  `db:"unit"`
	ObsStatus     *string  `db:"obs_status"`
	Decimal       *int64   `db:"decimal_places"`
}

func toRow(p model.DataPoint) pointRow {
	r := pointRow{
		IndicatorID:   p.IndicatorID,
		IndicatorName: p.IndicatorName,
		CountryID:     p.CountryID,
		CountryName:   p.CountryName,
		CountryISO3:   p.CountryISO3,
		Year:          p.Year,
		Unit:          p.Unit,
		ObsStatus:     p.ObsStatus,
	}
	if p.Value != nil && !math.IsNaN(*p.Value) && !math.IsInf(*p.Value, 0) {
		v := *p.Value
		r.Value = &v
	}
	if p.Decimal != nil {
		d := int64(*p.Decimal)
		r.Decimal = &d
	}
	return r
}

func (r pointRow) point() model.DataPoint {
	p := model.DataPoint{
		IndicatorID:   r.IndicatorID,
		IndicatorName: r.IndicatorName,
		CountryID:     r.CountryID,
		CountryName:   r.CountryName,
		CountryISO3:   r.CountryISO3,
		Year:          r.Year,
		Value:         r.Value,
		Unit:          r.Unit,
		ObsStatus:     r.ObsStatus,
	}
	if r.Decimal != nil {
		p.Decimal = model.Int(int(*r.Decimal))
	}
	return p
}
