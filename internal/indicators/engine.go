// Package indicators computes agronomic aggregates over stored weather
// series: growing degree days, water balance, chill hours, a simple
// infection index and total radiation. Computation is pure over what
// the store returns; persistence is a separate concern.
package indicators

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"agromet-cloud/internal/observability/metrics"
	weather "agromet-cloud/internal/weather/domain"
)

// Indicator codes as persisted.
const (
	CodeGDD            = "gdd"
	CodeWaterBalance   = "water_balance"
	CodeChillHours     = "chill_hours"
	CodeInfectionIndex = "infection_index"
	CodeRadiationTotal = "radiation_total"
)

// Defaults match common agronomic practice for temperate crops.
const (
	DefaultTBase       = 10.0
	DefaultChillTLow   = 0.0
	DefaultChillTHigh  = 7.2
	DefaultRHThreshold = 90.0
	DefaultInfTMin     = 15.0
	DefaultInfTMax     = 25.0
)

// Result is one computed indicator ready for persistence.
type Result struct {
	Code         string
	Params       map[string]any
	Value        map[string]any
	CalculatedAt time.Time
}

// Repository persists computed indicators.
type Repository interface {
	Save(ctx context.Context, pointID int64, result Result) error
}

// Engine evaluates indicators for one point over a date window.
type Engine struct {
	measurements weather.MeasurementRepository
	store        Repository
	now          func() time.Time
}

// NewEngine constructs an Engine. store may be nil for compute-only use.
func NewEngine(measurements weather.MeasurementRepository, store Repository) (*Engine, error) {
	if measurements == nil {
		return nil, errors.New("indicators: nil measurement repository")
	}
	return &Engine{
		measurements: measurements,
		store:        store,
		now:          time.Now,
	}, nil
}

// RunAllParams bundles the tunables of RunAll.
type RunAllParams struct {
	TBase       float64
	RHThreshold float64
	InfTMin     float64
	InfTMax     float64
}

// DefaultRunAllParams returns the standard tunables.
func DefaultRunAllParams() RunAllParams {
	return RunAllParams{
		TBase:       DefaultTBase,
		RHThreshold: DefaultRHThreshold,
		InfTMin:     DefaultInfTMin,
		InfTMax:     DefaultInfTMax,
	}
}

// RunAll computes every indicator for the window and persists each one
// when a store is configured. One indicator's failure does not stop the
// others; the first error is reported after all have run.
func (e *Engine) RunAll(ctx context.Context, pointID int64, start, end time.Time, params RunAllParams) (map[string]Result, error) {
	type compute struct {
		code string
		fn   func() (Result, error)
	}
	computations := []compute{
		{CodeGDD, func() (Result, error) { return e.ComputeGDD(ctx, pointID, start, end, params.TBase) }},
		{CodeWaterBalance, func() (Result, error) { return e.ComputeWaterBalance(ctx, pointID, start, end) }},
		{CodeChillHours, func() (Result, error) {
			return e.ComputeChillHours(ctx, pointID, start, end, DefaultChillTLow, DefaultChillTHigh)
		}},
		{CodeInfectionIndex, func() (Result, error) {
			return e.ComputeInfectionIndex(ctx, pointID, start, end, params.RHThreshold, params.InfTMin, params.InfTMax)
		}},
		{CodeRadiationTotal, func() (Result, error) { return e.ComputeTotalRadiation(ctx, pointID, start, end) }},
	}

	results := make(map[string]Result, len(computations))
	var firstErr error
	for _, c := range computations {
		started := e.now()
		result, err := c.fn()
		if err != nil {
			metrics.ObserveIndicator(c.code, metrics.ResultError, e.now().Sub(started))
			if firstErr == nil {
				firstErr = fmt.Errorf("indicators: %s: %w", c.code, err)
			}
			continue
		}
		metrics.ObserveIndicator(c.code, metrics.ResultSuccess, e.now().Sub(started))
		results[c.code] = result
		if e.store != nil {
			if err := e.store.Save(ctx, pointID, result); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("indicators: save %s: %w", c.code, err)
			}
		}
	}
	return results, firstErr
}

// ComputeGDD evaluates daily growing degree days: max(0, T_mean - T_base).
// T_mean falls back from the daily mean series to (max+min)/2 and then
// to the per-day average of hourly temperature.
func (e *Engine) ComputeGDD(ctx context.Context, pointID int64, start, end time.Time, tBase float64) (Result, error) {
	tMax, err := e.dailySeries(ctx, pointID, "temperature_max", start, end)
	if err != nil {
		return Result{}, err
	}
	tMin, err := e.dailySeries(ctx, pointID, "temperature_min", start, end)
	if err != nil {
		return Result{}, err
	}
	tMean, err := e.dailySeries(ctx, pointID, "temperature_mean", start, end)
	if err != nil {
		return Result{}, err
	}

	for _, d := range daysBetween(start, end) {
		if _, ok := tMean[d]; ok {
			continue
		}
		maxV, okMax := tMax[d]
		minV, okMin := tMin[d]
		if okMax && okMin {
			tMean[d] = (maxV + minV) / 2
		}
	}

	var missing []time.Time
	for _, d := range daysBetween(start, end) {
		if _, ok := tMean[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		hourly, err := e.hourlySeries(ctx, pointID, "temperature", missing[0], missing[len(missing)-1], false)
		if err != nil {
			return Result{}, err
		}
		sums := make(map[time.Time]float64)
		counts := make(map[time.Time]int)
		for ts, v := range hourly {
			d := dayOf(ts)
			sums[d] += v
			counts[d]++
		}
		for _, d := range missing {
			if counts[d] > 0 {
				tMean[d] = sums[d] / float64(counts[d])
			}
		}
	}

	var daily []map[string]any
	total := 0.0
	for _, d := range daysBetween(start, end) {
		tm, ok := tMean[d]
		if !ok {
			continue
		}
		gdd := math.Max(0, tm-tBase)
		total += gdd
		daily = append(daily, map[string]any{
			"date":   d.Format("2006-01-02"),
			"t_mean": round3(tm),
			"gdd":    round3(gdd),
		})
	}

	return e.result(CodeGDD,
		map[string]any{"start_date": dateStr(start), "end_date": dateStr(end), "t_base": tBase},
		map[string]any{"params": map[string]any{"t_base": tBase}, "daily": daily, "total": round3(total)},
	), nil
}

// ComputeWaterBalance evaluates the running ET0-minus-precipitation
// deficit per day. Days without data count as zero on both sides.
func (e *Engine) ComputeWaterBalance(ctx context.Context, pointID int64, start, end time.Time) (Result, error) {
	precip, err := e.dailySeries(ctx, pointID, "precipitation_sum", start, end)
	if err != nil {
		return Result{}, err
	}
	et0, err := e.dailySeries(ctx, pointID, "et0_fao_evapotranspiration_sum", start, end)
	if err != nil {
		return Result{}, err
	}
	if len(et0) == 0 {
		et0, err = e.dailySeries(ctx, pointID, "et0_fao_evapotranspiration", start, end)
		if err != nil {
			return Result{}, err
		}
	}

	var daily []map[string]any
	cum := 0.0
	for _, d := range daysBetween(start, end) {
		p := precip[d]
		et := et0[d]
		deficit := et - p
		cum += deficit
		daily = append(daily, map[string]any{
			"date":              d.Format("2006-01-02"),
			"precipitation_sum": round3(p),
			"et0_sum":           round3(et),
			"deficit":           round3(deficit),
			"cum_balance":       round3(cum),
		})
	}

	return e.result(CodeWaterBalance,
		map[string]any{"start_date": dateStr(start), "end_date": dateStr(end)},
		map[string]any{"daily": daily, "total": round3(cum)},
	), nil
}

// ComputeChillHours counts hours with t_low < T < t_high, including the
// 15-minute series where hourly data is absent for a timestamp.
func (e *Engine) ComputeChillHours(ctx context.Context, pointID int64, start, end time.Time, tLow, tHigh float64) (Result, error) {
	series, err := e.hourlySeries(ctx, pointID, "temperature", start, end, true)
	if err != nil {
		return Result{}, err
	}

	var hours []string
	for _, ts := range sortedKeys(series) {
		t := series[ts]
		if tLow < t && t < tHigh {
			hours = append(hours, ts.Format(time.RFC3339))
		}
	}

	return e.result(CodeChillHours,
		map[string]any{"start_date": dateStr(start), "end_date": dateStr(end), "t_low": tLow, "t_high": tHigh},
		map[string]any{"params": map[string]any{"t_low": tLow, "t_high": tHigh}, "hours": hours, "total": len(hours)},
	), nil
}

// ComputeInfectionIndex counts hours where RH >= threshold and the
// temperature sits in [t_min, t_max]. Only timestamps present in both
// series participate.
func (e *Engine) ComputeInfectionIndex(ctx context.Context, pointID int64, start, end time.Time, rhThreshold, tMin, tMax float64) (Result, error) {
	temps, err := e.hourlySeries(ctx, pointID, "temperature", start, end, true)
	if err != nil {
		return Result{}, err
	}
	humidity, err := e.hourlySeries(ctx, pointID, "relative_humidity", start, end, true)
	if err != nil {
		return Result{}, err
	}

	var hours []string
	for _, ts := range sortedKeys(temps) {
		rh, ok := humidity[ts]
		if !ok {
			continue
		}
		t := temps[ts]
		if tMin <= t && t <= tMax && rh >= rhThreshold {
			hours = append(hours, ts.Format(time.RFC3339))
		}
	}

	return e.result(CodeInfectionIndex,
		map[string]any{"start_date": dateStr(start), "end_date": dateStr(end), "rh_threshold": rhThreshold, "t_min": tMin, "t_max": tMax},
		map[string]any{
			"params": map[string]any{"rh_threshold": rhThreshold, "t_min": tMin, "t_max": tMax},
			"hours":  hours,
			"total":  len(hours),
		},
	), nil
}

// ComputeTotalRadiation sums the daily shortwave radiation over the
// window. Units follow the provider (MJ/m² for Open-Meteo).
func (e *Engine) ComputeTotalRadiation(ctx context.Context, pointID int64, start, end time.Time) (Result, error) {
	radiation, err := e.dailySeries(ctx, pointID, "shortwave_radiation_sum", start, end)
	if err != nil {
		return Result{}, err
	}

	var daily []map[string]any
	total := 0.0
	for _, d := range daysBetween(start, end) {
		v := radiation[d]
		total += v
		daily = append(daily, map[string]any{
			"date":                    d.Format("2006-01-02"),
			"shortwave_radiation_sum": round4(v),
		})
	}

	return e.result(CodeRadiationTotal,
		map[string]any{"start_date": dateStr(start), "end_date": dateStr(end)},
		map[string]any{"daily": daily, "total": round4(total)},
	), nil
}

// dailySeries loads one daily parameter with history and forecast rows
// merged, later rows winning on timestamp ties.
func (e *Engine) dailySeries(ctx context.Context, pointID int64, param string, start, end time.Time) (map[time.Time]float64, error) {
	rows, err := e.measurements.Series(ctx, pointID, param,
		[]weather.DataType{weather.HistoryDaily, weather.ForecastDaily},
		dayOf(start), endOfDay(end))
	if err != nil {
		return nil, err
	}
	series := make(map[time.Time]float64)
	for _, row := range rows {
		if row.ValueNumeric == nil {
			continue
		}
		series[dayOf(row.TimestampUTC)] = *row.ValueNumeric
	}
	return series, nil
}

// hourlySeries loads one sub-daily parameter, last-wins by timestamp.
func (e *Engine) hourlySeries(ctx context.Context, pointID int64, param string, start, end time.Time, include15 bool) (map[time.Time]float64, error) {
	types := []weather.DataType{weather.HistoryHourly, weather.ForecastHourly}
	if include15 {
		types = append(types, weather.History15m, weather.Forecast15m)
	}
	rows, err := e.measurements.Series(ctx, pointID, param, types, dayOf(start), endOfDay(end))
	if err != nil {
		return nil, err
	}
	series := make(map[time.Time]float64)
	for _, row := range rows {
		if row.ValueNumeric == nil {
			continue
		}
		series[row.TimestampUTC] = *row.ValueNumeric
	}
	return series, nil
}

func (e *Engine) result(code string, params, value map[string]any) Result {
	return Result{
		Code:         code,
		Params:       params,
		Value:        value,
		CalculatedAt: e.now().UTC(),
	}
}

func dayOf(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(ts time.Time) time.Time {
	d := dayOf(ts)
	return d.Add(24*time.Hour - time.Second)
}

func daysBetween(start, end time.Time) []time.Time {
	first := dayOf(start)
	last := dayOf(end)
	if last.Before(first) {
		return nil
	}
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func sortedKeys(series map[time.Time]float64) []time.Time {
	keys := make([]time.Time, 0, len(series))
	for ts := range series {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

func dateStr(ts time.Time) string {
	return dayOf(ts).Format("2006-01-02")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
