package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Number is a decimal that decodes from either a JSON number or a numeric string.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %q is not a finite number", ErrValidation, s)
	}
	*n = Number(f)
	return nil
}

// Float returns the value as float64, treating nil as zero.
func (n *Number) Float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// Int returns the value rounded to the nearest integer, treating nil as zero.
func (n *Number) Int() int {
	return int(math.Round(n.Float()))
}

// ReadingInput is the create/update payload. ID is only read on update.
// Every mutable field is required; update replaces all of them at once.
type ReadingInput struct {
	ID          int64   `json:"id"`
	CityName    string  `json:"city_name" validate:"required"`
	Latitude    *Number `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *Number `json:"longitude" validate:"required,gte=-180,lte=180"`
	Temperature *Number `json:"temperature" validate:"required"`
	FeelsLike   *Number `json:"feels_like" validate:"required"`
	Humidity    *Number `json:"humidity" validate:"required"`
	Pressure    *Number `json:"pressure" validate:"required"`
	Description string  `json:"description" validate:"required"`
}

// Validate checks required fields and coordinate ranges.
func (in ReadingInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	for name, v := range map[string]*Number{
		"latitude":    in.Latitude,
		"longitude":   in.Longitude,
		"temperature": in.Temperature,
		"feels_like":  in.FeelsLike,
		"humidity":    in.Humidity,
		"pressure":    in.Pressure,
	} {
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrValidation, name)
		}
	}
	return nil
}

func (in ReadingInput) toReading() Reading {
	return Reading{
		ID:          in.ID,
		CityName:    in.CityName,
		Latitude:    in.Latitude.Float(),
		Longitude:   in.Longitude.Float(),
		Temperature: in.Temperature.Float(),
		FeelsLike:   in.FeelsLike.Float(),
		Humidity:    in.Humidity.Int(),
		Pressure:    in.Pressure.Int(),
		Description: in.Description,
	}
}
