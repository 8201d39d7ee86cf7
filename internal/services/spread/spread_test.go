package spread

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"PairSpread/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(step time.Duration, prices ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Timestamp: t0.Add(time.Duration(i) * step), Price: p}
	}
	return out
}

// flat returns a price1 series of ones, so log price1 is zero and the spread
// equals log price2 with alpha 0 and beta 1.
func flat(n int) []models.PricePoint {
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	return series(4*time.Hour, ones...)
}

func expSeries(spreads ...float64) []models.PricePoint {
	prices := make([]float64, len(spreads))
	for i, s := range spreads {
		prices[i] = math.Exp(s)
	}
	return series(4*time.Hour, prices...)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func compute(t *testing.T, s1, s2 []models.PricePoint, p models.SignalParams) models.SignalSeries {
	t.Helper()
	table, err := NewAligner().Align(s1, s2)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	return NewEngine().ComputeSignal(table, p)
}

func TestAlignInnerJoin(t *testing.T) {
	s1 := series(time.Hour, 10, 11, 12, 13, 14, 15)
	// s2 on a two-hour grid shares t0, t0+2h and t0+4h with s1
	s2 := series(2*time.Hour, 20, 22, 24, 26)

	rows, err := NewAligner().Align(s1, s2)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(rows) > len(s1) || len(rows) > len(s2) {
		t.Fatalf("len = %d exceeds min input length", len(rows))
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}

	in1 := map[int64]bool{}
	in2 := map[int64]bool{}
	for _, p := range s1 {
		in1[p.Timestamp.UnixNano()] = true
	}
	for _, p := range s2 {
		in2[p.Timestamp.UnixNano()] = true
	}
	for i, r := range rows {
		k := r.Timestamp.UnixNano()
		if !in1[k] || !in2[k] {
			t.Errorf("row %d timestamp %s not in both inputs", i, r.Timestamp)
		}
		if i > 0 && !r.Timestamp.After(rows[i-1].Timestamp) {
			t.Errorf("row %d not ascending", i)
		}
	}
	if !almostEqual(rows[1].LogPrice1, math.Log(12)) || !almostEqual(rows[1].LogPrice2, math.Log(22)) {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestAlignSelf(t *testing.T) {
	s := series(time.Minute, 1.5, 2.5, 3.5, 4.5)
	rows, err := NewAligner().Align(s, s)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(rows) != len(s) {
		t.Fatalf("len = %d, want %d", len(rows), len(s))
	}
	for i, r := range rows {
		if !r.Timestamp.Equal(s[i].Timestamp) {
			t.Errorf("row %d timestamp %s, want %s", i, r.Timestamp, s[i].Timestamp)
		}
		if r.LogPrice1 != math.Log(s[i].Price) || r.LogPrice2 != r.LogPrice1 {
			t.Errorf("row %d log prices %v %v", i, r.LogPrice1, r.LogPrice2)
		}
	}
}

func TestAlignMatchesInstantsAcrossZones(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	s1 := series(time.Hour, 1, 2)
	s2 := []models.PricePoint{
		{Timestamp: s1[0].Timestamp.In(loc), Price: 3},
		{Timestamp: s1[1].Timestamp.In(loc), Price: 4},
	}
	rows, err := NewAligner().Align(s1, s2)
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows = %d, err = %v", len(rows), err)
	}
}

func TestAlignInvalidPrice(t *testing.T) {
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		s1 := series(time.Hour, 1, 2, 3)
		s2 := series(time.Hour, 1, bad, 3)
		_, err := NewAligner().Align(s1, s2)
		var ipe *InvalidPriceError
		if !errors.As(err, &ipe) {
			t.Fatalf("price %v: err = %v, want InvalidPriceError", bad, err)
		}
		if ipe.Series != 2 || ipe.Index != 1 || !ipe.Timestamp.Equal(s2[1].Timestamp) {
			t.Errorf("price %v: %+v", bad, ipe)
		}
	}

	// prices outside the intersection are still checked
	s1 := series(time.Hour, 1, 2)
	s2 := []models.PricePoint{{Timestamp: t0, Price: 5}, {Timestamp: t0.Add(10 * time.Hour), Price: -3}}
	var ipe *InvalidPriceError
	if _, err := NewAligner().Align(s1, s2); !errors.As(err, &ipe) {
		t.Errorf("err = %v, want InvalidPriceError", err)
	}
}

func TestAlignEmpty(t *testing.T) {
	s1 := series(time.Hour, 1, 2)
	s2 := []models.PricePoint{{Timestamp: t0.Add(30 * time.Minute), Price: 1}}
	if _, err := NewAligner().Align(s1, s2); !errors.Is(err, ErrEmptyAlignment) {
		t.Errorf("err = %v, want ErrEmptyAlignment", err)
	}
	if _, err := NewAligner().Align(nil, s2); !errors.Is(err, ErrEmptyAlignment) {
		t.Errorf("nil input: err = %v, want ErrEmptyAlignment", err)
	}
}

func TestSpreadConstantRatio(t *testing.T) {
	p1 := []float64{100, 101.5, 99.2, 250, 0.003, 42}
	p2 := make([]float64, len(p1))
	for i, p := range p1 {
		p2[i] = 2 * p
	}
	out := compute(t, series(time.Hour, p1...), series(time.Hour, p2...), models.SignalParams{Alpha: 0, Beta: 1, Window: 3})
	for i, r := range out.Rows {
		if !r.Spread.Valid || !almostEqual(r.Spread.Float64, math.Ln2) {
			t.Errorf("row %d spread = %+v, want ln 2", i, r.Spread)
		}
	}
}

func TestSpreadAlphaBeta(t *testing.T) {
	s1 := series(time.Hour, math.E, math.E*math.E)
	s2 := series(time.Hour, math.Exp(3), math.Exp(5))
	out := compute(t, s1, s2, models.SignalParams{Alpha: 0.5, Beta: 2, Window: 2})
	want := []float64{3 - 2*1 - 0.5, 5 - 2*2 - 0.5}
	for i, r := range out.Rows {
		if !almostEqual(r.Spread.Float64, want[i]) {
			t.Errorf("row %d spread = %v, want %v", i, r.Spread.Float64, want[i])
		}
	}
}

func TestWindowThreeOnFiveRows(t *testing.T) {
	out := compute(t, flat(5), expSeries(1, 2, 4, 7, 11), models.SignalParams{Beta: 1, Window: 3})
	if len(out.Rows) != 5 || len(out.Warnings) != 0 {
		t.Fatalf("rows = %d, warnings = %v", len(out.Rows), out.Warnings)
	}

	for i := 0; i < 2; i++ {
		r := out.Rows[i]
		if r.RollingMean.Valid || r.RollingStd.Valid || r.ZScore.Valid {
			t.Errorf("row %d should have null stats: %+v", i, r)
		}
	}
	for i := 2; i < 5; i++ {
		if !out.Rows[i].RollingMean.Valid || !out.Rows[i].RollingStd.Valid {
			t.Errorf("row %d should have stats: %+v", i, out.Rows[i])
		}
	}
	if out.Rows[2].ZScore.Valid {
		t.Errorf("row 2 z uses row 1 stats and must be null")
	}

	if m := out.Rows[2].RollingMean.Float64; !almostEqual(m, 7.0/3) {
		t.Errorf("mean[2] = %v", m)
	}
	if s := out.Rows[2].RollingStd.Float64; !almostEqual(s, math.Sqrt(7.0/3)) {
		t.Errorf("sample std[2] = %v", s)
	}

	z3 := (4 - 7.0/3) / math.Sqrt(7.0/3)
	z4 := (7 - 13.0/3) / math.Sqrt(57.0/9)
	if z := out.Rows[3].ZScore; !z.Valid || !almostEqual(z.Float64, z3) {
		t.Errorf("z[3] = %+v, want %v", z, z3)
	}
	if z := out.Rows[4].ZScore; !z.Valid || !almostEqual(z.Float64, z4) {
		t.Errorf("z[4] = %+v, want %v", z, z4)
	}
}

func TestFirstWindowMinusOneRowsNull(t *testing.T) {
	spreads := make([]float64, 50)
	for i := range spreads {
		spreads[i] = math.Sin(float64(i))
	}
	for _, w := range []int{2, 5, 17, 50} {
		out := compute(t, flat(len(spreads)), expSeries(spreads...), models.SignalParams{Beta: 1, Window: w})
		for i := 0; i < w-1; i++ {
			r := out.Rows[i]
			if r.RollingMean.Valid || r.RollingStd.Valid || r.ZScore.Valid {
				t.Fatalf("window %d row %d: stats should be null", w, i)
			}
		}
		if !out.Rows[0].Spread.Valid || out.Rows[0].ZScore.Valid {
			t.Errorf("window %d: row 0 must have a spread and a null z", w)
		}
	}
}

func TestZScoreDoesNotSeeCurrentRow(t *testing.T) {
	spreads := []float64{0.1, 0.4, -0.2, 0.3, 0.9, -0.5, 0.2, 0.05, 0.7, -0.1}
	params := models.SignalParams{Beta: 1, Window: 4}
	base := compute(t, flat(len(spreads)), expSeries(spreads...), params)

	for target := range spreads {
		mutated := append([]float64(nil), spreads...)
		mutated[target] += 5
		out := compute(t, flat(len(mutated)), expSeries(mutated...), params)
		for i := 0; i <= target; i++ {
			if !reflect.DeepEqual(out.Rows[i].ZScore, base.Rows[i].ZScore) {
				t.Fatalf("mutating row %d changed z[%d]: %+v -> %+v", target, i, base.Rows[i].ZScore, out.Rows[i].ZScore)
			}
		}
	}
}

func TestComputeSignalIsDeterministic(t *testing.T) {
	spreads := make([]float64, 300)
	for i := range spreads {
		spreads[i] = math.Cos(float64(i)/7) + float64(i%11)/10
	}
	table, err := NewAligner().Align(flat(len(spreads)), expSeries(spreads...))
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	params := models.SignalParams{Alpha: 0.01, Beta: 0.9, Window: 30, EntryZ: 2, ExitZ: 0.5}
	a := NewEngine().ComputeSignal(table, params)
	b := NewEngine().ComputeSignal(table, params)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two runs over the same input differ")
	}
}

func TestDegenerateWindows(t *testing.T) {
	cases := []struct {
		name   string
		window int
		want   string
	}{
		{"zero", 0, "below the minimum"},
		{"one", 1, "below the minimum"},
		{"negative", -3, "below the minimum"},
		{"too large", 6, "exceeds the 5 aligned rows"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := compute(t, flat(5), expSeries(1, 2, 3, 4, 5), models.SignalParams{Beta: 1, Window: tc.window})
			if len(out.Rows) != 5 {
				t.Fatalf("rows = %d, want 5", len(out.Rows))
			}
			if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], tc.want) {
				t.Fatalf("warnings = %v", out.Warnings)
			}
			for i, r := range out.Rows {
				if !r.Spread.Valid {
					t.Errorf("row %d spread should be defined", i)
				}
				if r.RollingMean.Valid || r.RollingStd.Valid || r.ZScore.Valid || r.Band != "" {
					t.Errorf("row %d should carry no statistics: %+v", i, r)
				}
			}
		})
	}
}

func TestWindowEqualToRowsHasNoZ(t *testing.T) {
	out := compute(t, flat(4), expSeries(1, 2, 3, 5), models.SignalParams{Beta: 1, Window: 4})
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings = %v", out.Warnings)
	}
	if !out.Rows[3].RollingStd.Valid {
		t.Error("last row should have stats")
	}
	for i, r := range out.Rows {
		if r.ZScore.Valid {
			t.Errorf("z[%d] should be null", i)
		}
	}
}

func TestNonFiniteSpreadNullsItsWindows(t *testing.T) {
	s2 := expSeries(1, 2, 3, 4, 5, 6, 7, 8)
	table, err := NewAligner().Align(flat(len(s2)), s2)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	table[3].LogPrice2 = math.Inf(1)
	out := NewEngine().ComputeSignal(table, models.SignalParams{Beta: 1, Window: 3})

	if out.Rows[3].Spread.Valid {
		t.Error("infinite spread should be null")
	}
	for i := 3; i <= 5; i++ {
		if out.Rows[i].RollingMean.Valid || out.Rows[i].RollingStd.Valid {
			t.Errorf("row %d window contains +Inf and must be null", i)
		}
	}
	if !out.Rows[2].RollingStd.Valid || !out.Rows[6].RollingStd.Valid {
		t.Error("windows without the infinite value should have stats")
	}
}

func TestZeroStdGivesNullZ(t *testing.T) {
	out := compute(t, flat(5), expSeries(2, 2, 2, 2, 2), models.SignalParams{Beta: 1, Window: 2})
	for i, r := range out.Rows {
		if r.ZScore.Valid {
			t.Errorf("z[%d] = %v, want null for a flat spread", i, r.ZScore.Float64)
		}
	}
	if !out.Rows[4].RollingStd.Valid || out.Rows[4].RollingStd.Float64 != 0 {
		t.Errorf("std[4] = %+v, want 0", out.Rows[4].RollingStd)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		z     models.NullFloat
		entry float64
		exit  float64
		want  string
	}{
		{models.Null(), 2, 0.5, models.BandNone},
		{models.Float(2), 2, 0.5, models.BandShortSpread},
		{models.Float(3.1), 2, 0.5, models.BandShortSpread},
		{models.Float(-2.5), 2, 0.5, models.BandLongSpread},
		{models.Float(0.5), 2, 0.5, models.BandExit},
		{models.Float(-0.2), 2, 0.5, models.BandExit},
		{models.Float(1.2), 2, 0.5, models.BandNone},
		{models.Float(5), 0, 0.5, models.BandNone},
		{models.Float(0.1), 2, 0, models.BandNone},
	}
	for _, tc := range cases {
		if got := classify(tc.z, tc.entry, tc.exit); got != tc.want {
			t.Errorf("classify(%+v, %v, %v) = %q, want %q", tc.z, tc.entry, tc.exit, got, tc.want)
		}
	}
}

func TestBandsFollowLaggedZ(t *testing.T) {
	spreads := []float64{0, 0.1, -0.1, 0.05, 3, 0, -3, 0.02}
	out := compute(t, flat(len(spreads)), expSeries(spreads...), models.SignalParams{Beta: 1, Window: 3, EntryZ: 1, ExitZ: 0.3})
	for i, r := range out.Rows {
		if want := classify(r.ZScore, 1, 0.3); r.Band != want {
			t.Errorf("row %d band = %q, want %q", i, r.Band, want)
		}
	}
}
