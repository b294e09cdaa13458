package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// Upper bounds on a single entry.
const (
	maxWaterML   = 10000
	maxFoodGrams = 5000
	maxWeightKg  = 500
	maxHeightCm  = 300
	maxAge       = 150
	maxMinutes   = 24 * 60
)

// parsePositiveFloat accepts "70", "70.5" and "70,5" in (0, most].
func parsePositiveFloat(s string, most float64) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > most {
		return 0, false
	}
	return v, true
}

// parseInt accepts a whole number in [least, most].
func parseInt(s string, least, most int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < least || v > most {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// bufferFloat reads a float the engine itself stored in the buffer.
func bufferFloat(buf map[models.DataKey]string, key models.DataKey) (float64, error) {
	raw, ok := buf[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", models.ErrMalformedBuffer, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", models.ErrMalformedBuffer, key, raw)
	}
	return v, nil
}

func bufferInt(buf map[models.DataKey]string, key models.DataKey) (int, error) {
	raw, ok := buf[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", models.ErrMalformedBuffer, key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", models.ErrMalformedBuffer, key, raw)
	}
	return v, nil
}
