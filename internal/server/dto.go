package server

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"ayursutra/internal/app"
)

// Request bodies. Unknown fields are ignored; the dashboard posts whole form objects.

type patientRequest struct {
	Name      string          `json:"name"`
	Age       json.RawMessage `json:"age"`
	Date      *string         `json:"date"`
	Treatment string          `json:"treatment"`
	Status    string          `json:"status"`
}

type chatRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

type askRequest struct {
	Message string `json:"message"`
}

func (req patientRequest) createInput(loc *time.Location) (app.CreatePatientInput, error) {
	age, err := parseAge(req.Age)
	if err != nil {
		return app.CreatePatientInput{}, err
	}
	date, err := parseDate(req.Date, loc)
	if err != nil {
		return app.CreatePatientInput{}, err
	}
	return app.CreatePatientInput{
		Name:      req.Name,
		Age:       age,
		Date:      date,
		Treatment: req.Treatment,
		Status:    req.Status,
	}, nil
}

func (req patientRequest) updateInput() (app.UpdatePatientInput, error) {
	age, err := parseAge(req.Age)
	if err != nil {
		return app.UpdatePatientInput{}, err
	}
	return app.UpdatePatientInput{
		Name:      req.Name,
		Age:       age,
		Treatment: req.Treatment,
		Status:    req.Status,
	}, nil
}

// parseAge accepts a JSON number or a numeric string. Absent, null and "" yield
// nil so the service reports the field as required.
func parseAge(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, invalidAge()
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	} else {
		text = string(raw)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return nil, invalidAge()
	}
	age := int(f)
	return &age, nil
}

func invalidAge() error {
	return &app.ValidationError{Field: "age", Message: "must be a non-negative integer"}
}

var localDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate reads RFC 3339 timestamps as-is and zone-less datetime-local or
// date values in loc. Nil or blank means "use the default".
func parseDate(raw *string, loc *time.Location) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, &app.ValidationError{Field: "date", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"}
}
