package clob

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal tolerates the API's mixed encodings: quoted strings, bare numbers,
// and null.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

// Float returns the value when positive. The book reports an empty side as
// price zero, so zero reads as missing.
func (d Decimal) Float() (float64, bool) {
	if d.Decimal.IsPositive() {
		return d.Decimal.InexactFloat64(), true
	}
	return 0, false
}
