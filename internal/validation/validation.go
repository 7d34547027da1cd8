package validation

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/forecast-proxy/internal/params"
)

// ErrCoordinatesRequired is returned when latitude or longitude is missing.
var ErrCoordinatesRequired = errors.New("latitude and longitude are required")

// ErrInvalidCoordinate is returned when latitude or longitude is out of range or not a number.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ErrVariablesRequired is returned when none of hourly, daily or current is given.
var ErrVariablesRequired = errors.New("at least one of hourly, daily or current is required")

// ErrInvalidDayCount is returned when past_days or forecast_days is not a whole number.
var ErrInvalidDayCount = errors.New("day count must be a whole number")

// DefaultTimezone is forwarded when the caller does not choose one.
const DefaultTimezone = "auto"

var validate = validator.New()

// ForecastQuery is the public query accepted by the forecast route. All values
// are kept as the strings the client sent.
type ForecastQuery struct {
	Latitude     string `validate:"required,latitude"`
	Longitude    string `validate:"required,longitude"`
	Hourly       string `validate:"required_without_all=Daily Current"`
	Daily        string
	Current      string
	Timezone     string
	PastDays     string `validate:"omitempty,number"`
	ForecastDays string `validate:"omitempty,number"`
}

// ParseForecastQuery reads the forecast query from q. Timezone defaults to auto.
func ParseForecastQuery(q url.Values) ForecastQuery {
	fq := ForecastQuery{
		Latitude:     q.Get("latitude"),
		Longitude:    q.Get("longitude"),
		Hourly:       q.Get("hourly"),
		Daily:        q.Get("daily"),
		Current:      q.Get("current"),
		Timezone:     q.Get("timezone"),
		PastDays:     q.Get("past_days"),
		ForecastDays: q.Get("forecast_days"),
	}
	if fq.Timezone == "" {
		fq.Timezone = DefaultTimezone
	}
	return fq
}

// Validate checks q and returns one of the sentinel errors above, wrapped with
// the offending field, suitable for 400 INVALID_QUERY responses.
func (q ForecastQuery) Validate() error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate forecast query: %w", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Latitude", "Longitude":
		if fe.Tag() == "required" {
			return ErrCoordinatesRequired
		}
		return fmt.Errorf("%w: %s", ErrInvalidCoordinate, fe.Field())
	case "Hourly":
		return ErrVariablesRequired
	case "PastDays", "ForecastDays":
		return fmt.Errorf("%w: %s", ErrInvalidDayCount, fe.Field())
	}
	return fmt.Errorf("validate forecast query: %w", err)
}

// Params returns the query as ordered forecast parameters with empty values
// removed, ready for lookup and forwarding.
func (q ForecastQuery) Params() params.Params {
	p := params.Params{
		{Key: "latitude", Value: params.String(q.Latitude)},
		{Key: "longitude", Value: params.String(q.Longitude)},
		{Key: "hourly", Value: params.String(q.Hourly)},
		{Key: "daily", Value: params.String(q.Daily)},
		{Key: "current", Value: params.String(q.Current)},
		{Key: "timezone", Value: params.String(q.Timezone)},
		{Key: "past_days", Value: params.String(q.PastDays)},
		{Key: "forecast_days", Value: params.String(q.ForecastDays)},
	}
	return params.Normalize(p)
}
