package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
)

func sampleTable() *models.AnalyticsTable {
	nan := models.NaN()
	return &models.AnalyticsTable{
		AsOf:             time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Version:          "mem-7",
		RealizedHorizons: []int{10, 20},
		Rows: []models.AnalyticsRow{
			{
				OptionTenor: "1M", UnderlyingTenor: "2Y", TermTenor: "1M x 2Y",
				ImpliedVolAnn: 80, ImpliedVolAnnChg1D: 30, ImpliedVolAnnChg1W: 30, ImpliedVolAnnChg1M: nan,
				ImpliedVolAnnHigh: 80, ImpliedVolAnnLow: 50,
				ImpliedVolDaily: models.Stat(80 / math.Sqrt(252)), ImpliedVolDailyChg1D: models.Stat(30 / math.Sqrt(252)),
				ImpliedVolDailyChg1W: models.Stat(30 / math.Sqrt(252)), ImpliedVolDailyChg1M: nan,
				ImpliedVolDailyHigh: models.Stat(80 / math.Sqrt(252)), ImpliedVolDailyLow: models.Stat(50 / math.Sqrt(252)),
				ZScore: 7.6170886, RichCheap: models.Rich,
				Realized: []models.RealizedStat{
					{Days: 10, RealizedVol: 23.81, Ratio: models.Stat(80 / 23.81)},
					{Days: 20, RealizedVol: nan, Ratio: nan},
				},
				IsLargest1DMover: true, IsLargest1WMover: true,
			},
			{
				OptionTenor: "1M", UnderlyingTenor: "5Y", TermTenor: "1M x 5Y",
				ImpliedVolAnn: nan, ImpliedVolAnnChg1D: nan, ImpliedVolAnnChg1W: nan, ImpliedVolAnnChg1M: nan,
				ImpliedVolAnnHigh: nan, ImpliedVolAnnLow: nan,
				ImpliedVolDaily: nan, ImpliedVolDailyChg1D: nan, ImpliedVolDailyChg1W: nan, ImpliedVolDailyChg1M: nan,
				ImpliedVolDailyHigh: nan, ImpliedVolDailyLow: nan,
				ZScore: nan, RichCheap: models.Undefined,
				Realized: []models.RealizedStat{
					{Days: 10, RealizedVol: 19.5, Ratio: nan},
					{Days: 20, RealizedVol: 18.25, Ratio: nan},
				},
			},
		},
	}
}

func TestHeader(t *testing.T) {
	h := Header([]int{10, 60})
	joined := strings.Join(h, ",")
	if !strings.Contains(joined, "zscore_60d,rich_cheap,realized_vol_10d,realized_vol_60d,iv_rv_ratio_10d,iv_rv_ratio_60d,is_largest_1d_mover") {
		t.Fatalf("header=%s", joined)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	in := sampleTable()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d", len(lines))
	}
	if !strings.Contains(lines[2], ",,") {
		t.Fatalf("undefined stats must be empty cells: %s", lines[2])
	}

	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want, _ := json.Marshal(in)
	got, _ := json.Marshal(out)
	if string(want) != string(got) {
		t.Fatalf("round trip differs:\nwant %s\ngot  %s", want, got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := sampleTable()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, in); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"zscore_60d": null`) {
		t.Fatalf("NaN must encode as null")
	}
	out, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := json.Marshal(in)
	got, _ := json.Marshal(out)
	if string(want) != string(got) {
		t.Fatalf("round trip differs:\nwant %s\ngot  %s", want, got)
	}
}

func TestReadCSVMalformed(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, sampleTable())
	good := buf.String()

	cases := map[string]string{
		"empty":       "",
		"bad header":  strings.Replace(good, "zscore_60d", "zscore", 1),
		"bad number":  strings.Replace(good, ",80,", ",eighty,", 1),
		"short row":   strings.SplitN(good, "\n", 2)[0] + "\n2024-03-15,mem-7,1M\n",
		"odd horizon": "as_of\n",
		"no rows":     strings.SplitN(good, "\n", 2)[0] + "\n",
		"mixed as_of": mixedAsOf(good),
	}
	for name, in := range cases {
		if _, err := ReadCSV(strings.NewReader(in)); !errors.Is(err, timeseries.ErrMalformedInput) {
			t.Fatalf("%s: expected ErrMalformedInput, got %v", name, err)
		}
	}
}

// mixedAsOf moves the second data row to another date.
func mixedAsOf(good string) string {
	lines := strings.Split(good, "\n")
	lines[2] = strings.Replace(lines[2], "2024-03-15", "2024-03-14", 1)
	return strings.Join(lines, "\n")
}
