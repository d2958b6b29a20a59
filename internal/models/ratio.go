package models

import (
	"math"
	"strconv"
)

// Ratio — число, которое может быть бесконечным (profit factor без убытков).
// В JSON бесконечность и NaN пишутся как null.
type Ratio float64

func (r Ratio) Finite() bool {
	f := float64(r)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Finite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(r), 'g', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio(math.Inf(1))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

func (r Ratio) String() string {
	if math.IsInf(float64(r), 1) {
		return "∞"
	}
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}
