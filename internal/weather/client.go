// Package weather fetches forecasts from the Open-Meteo API and keeps the
// last successful result for instant snapshots.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"glancehub/internal/httputil"
	"glancehub/internal/models"
)

const defaultBaseURL = "https://api.open-meteo.com/v1"

const (
	hourlyItems = 24
	dailyItems  = 7
)

type Client struct {
	baseURL string
	lat     float64
	lon     float64
	city    string
	http    *http.Client
	limiter *rate.Limiter

	mu        sync.RWMutex
	cached    *models.WeatherData
	fetchedAt time.Time
}

func New(lat, lon float64, city string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		lat:     lat,
		lon:     lon,
		city:    city,
		http:    httputil.NewClientWithTimeout(httputil.IntegrationTimeout),
		// Open-Meteo allows 10k requests/day for non-commercial use; one
		// request per second is far below that and absorbs refresh storms.
		limiter: rate.NewLimiter(1, 3),
	}
}

func NewWithBaseURL(lat, lon float64, city, baseURL string) *Client {
	c := New(lat, lon, city)
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

// Cached returns the last successfully fetched forecast, or nil if none.
func (c *Client) Cached() *models.WeatherData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// FetchedAt reports when the cached forecast was retrieved.
func (c *Client) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Refresh fetches a fresh forecast and updates the cache. On failure the
// previous cache is left intact.
func (c *Client) Refresh(ctx context.Context) (*models.WeatherData, error) {
	raw, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	data := translate(raw, c.city, time.Now())

	c.mu.Lock()
	c.cached = data
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return data, nil
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time        []string  `json:"time"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"daily"`
}

func (c *Client) fetch(ctx context.Context) (*forecastResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(c.lat, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(c.lon, 'f', 4, 64))
	query.Set("current", "temperature_2m,weather_code")
	query.Set("hourly", "temperature_2m,weather_code")
	query.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
	query.Set("forecast_days", strconv.Itoa(dailyItems))
	query.Set("timezone", "auto")

	u := c.baseURL + "/forecast?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forecast API returned status %d: %s", resp.StatusCode, httputil.Truncate(body, 200))
	}

	var parsed forecastResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	return &parsed, nil
}

// translate shapes the raw forecast into the display payload: the next 24
// hourly entries from now, and one entry per forecast day.
func translate(raw *forecastResponse, city string, now time.Time) *models.WeatherData {
	data := &models.WeatherData{
		City: city,
		Current: models.CurrentWeather{
			TempC: raw.Current.Temperature,
			Desc:  codeDesc(raw.Current.WeatherCode),
			Icon:  codeIcon(raw.Current.WeatherCode),
		},
	}

	if len(raw.Daily.TempMax) > 0 {
		data.Current.HiC = raw.Daily.TempMax[0]
	}
	if len(raw.Daily.TempMin) > 0 {
		data.Current.LoC = raw.Daily.TempMin[0]
	}

	for i, stamp := range raw.Hourly.Time {
		if i >= len(raw.Hourly.Temperature) || i >= len(raw.Hourly.WeatherCode) {
			break
		}
		t, err := time.ParseInLocation("2006-01-02T15:04", stamp, now.Location())
		if err != nil || t.Before(now.Truncate(time.Hour)) {
			continue
		}
		data.Hourly = append(data.Hourly, models.ForecastItem{
			Hour:  fmt.Sprintf("%02d", t.Hour()),
			TempC: raw.Hourly.Temperature[i],
			Icon:  codeIcon(raw.Hourly.WeatherCode[i]),
		})
		if len(data.Hourly) >= hourlyItems {
			break
		}
	}

	for i, stamp := range raw.Daily.Time {
		if i >= len(raw.Daily.TempMax) || i >= len(raw.Daily.WeatherCode) {
			break
		}
		t, err := time.Parse("2006-01-02", stamp)
		if err != nil {
			continue
		}
		data.Daily = append(data.Daily, models.ForecastItem{
			Day:   t.Weekday().String()[:3],
			TempC: raw.Daily.TempMax[i],
			Icon:  codeIcon(raw.Daily.WeatherCode[i]),
		})
		if len(data.Daily) >= dailyItems {
			break
		}
	}

	return data
}
