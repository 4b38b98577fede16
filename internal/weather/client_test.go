package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func forecastJSON(now time.Time) string {
	var hours, temps, codes []string
	for i := 0; i < 30; i++ {
		ts := now.Truncate(time.Hour).Add(time.Duration(i) * time.Hour)
		hours = append(hours, fmt.Sprintf("%q", ts.Format("2006-01-02T15:04")))
		temps = append(temps, fmt.Sprintf("%.1f", 15.0+float64(i)))
		codes = append(codes, "3")
	}

	var days, maxs, mins, dcodes []string
	for i := 0; i < 7; i++ {
		d := now.AddDate(0, 0, i)
		days = append(days, fmt.Sprintf("%q", d.Format("2006-01-02")))
		maxs = append(maxs, fmt.Sprintf("%.1f", 20.0+float64(i)))
		mins = append(mins, fmt.Sprintf("%.1f", 10.0+float64(i)))
		dcodes = append(dcodes, "61")
	}

	return fmt.Sprintf(`{
		"current": {"temperature_2m": 17.5, "weather_code": 0},
		"hourly": {"time": [%s], "temperature_2m": [%s], "weather_code": [%s]},
		"daily": {"time": [%s], "temperature_2m_max": [%s], "temperature_2m_min": [%s], "weather_code": [%s]}
	}`,
		strings.Join(hours, ","), strings.Join(temps, ","), strings.Join(codes, ","),
		strings.Join(days, ","), strings.Join(maxs, ","), strings.Join(mins, ","), strings.Join(dcodes, ","))
}

func TestRefreshShapesForecast(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latitude") == "" || q.Get("current") == "" {
			t.Errorf("missing query params: %v", q)
		}
		w.Write([]byte(forecastJSON(now)))
	}))
	defer srv.Close()

	c := NewWithBaseURL(47.4979, 19.0402, "Budapest", srv.URL)

	if c.Cached() != nil {
		t.Fatal("fresh client has cached data")
	}

	data, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if data.City != "Budapest" {
		t.Errorf("city = %q", data.City)
	}
	if data.Current.TempC != 17.5 {
		t.Errorf("current temp = %v", data.Current.TempC)
	}
	if data.Current.Icon != "sun" || data.Current.Desc != "Clear sky" {
		t.Errorf("current = %+v", data.Current)
	}
	if data.Current.HiC != 20.0 || data.Current.LoC != 10.0 {
		t.Errorf("hi/lo = %v/%v", data.Current.HiC, data.Current.LoC)
	}

	if len(data.Hourly) != hourlyItems {
		t.Errorf("hourly entries = %d, want %d", len(data.Hourly), hourlyItems)
	}
	for _, item := range data.Hourly {
		if item.Icon != "cloud" {
			t.Errorf("hourly icon = %s, want cloud", item.Icon)
		}
		if item.Hour == "" || item.Day != "" {
			t.Errorf("hourly item = %+v", item)
		}
	}

	if len(data.Daily) != 7 {
		t.Errorf("daily entries = %d, want 7", len(data.Daily))
	}
	for _, item := range data.Daily {
		if item.Icon != "rain" {
			t.Errorf("daily icon = %s, want rain", item.Icon)
		}
		if item.Day == "" || item.Hour != "" {
			t.Errorf("daily item = %+v", item)
		}
	}

	if c.Cached() != data {
		t.Error("refresh did not update the cache")
	}
	if c.FetchedAt().IsZero() {
		t.Error("fetch time not recorded")
	}
}

func TestRefreshKeepsCacheOnFailure(t *testing.T) {
	now := time.Now()
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(forecastJSON(now)))
	}))
	defer srv.Close()

	c := NewWithBaseURL(0, 0, "Nowhere", srv.URL)

	data, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fail = true
	if _, err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if c.Cached() != data {
		t.Fatal("failed refresh clobbered the cache")
	}
}

func TestCodeMappings(t *testing.T) {
	cases := []struct {
		code int
		icon string
	}{
		{0, "sun"},
		{1, "cloud_sun"},
		{2, "cloud_sun"},
		{3, "cloud"},
		{45, "fog"},
		{55, "rain"},
		{65, "rain"},
		{71, "snow"},
		{81, "rain"},
		{86, "snow"},
		{95, "storm"},
		{99, "storm"},
		{42, "cloud"}, // unknown code
	}
	for _, tc := range cases {
		if got := codeIcon(tc.code); got != tc.icon {
			t.Errorf("codeIcon(%d) = %s, want %s", tc.code, got, tc.icon)
		}
		if codeDesc(tc.code) == "" {
			t.Errorf("codeDesc(%d) is empty", tc.code)
		}
	}
}
