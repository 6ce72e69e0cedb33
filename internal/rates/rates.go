// rates supplies the wincoin-to-BTC conversion used by wallet_btc.
// The rate lives in a small JSON file created with a default when
// missing, so an operator can adjust it without a restart losing it.
package rates

import (
	"encoding/json"
	"os"
	"time"
)

const defaultBTC = 0.000021

type Rates struct {
	BTC       float64   `json:"btc"` // BTC per unit of wallet currency
	UpdatedAt time.Time `json:"updated_at"`
}

// Ensure creates the rates file with defaults if it does not exist.
func Ensure(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(path, &Rates{BTC: defaultBTC, UpdatedAt: time.Now()})
}

func Load(path string) (*Rates, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Rates
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func Save(path string, r *Rates) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Provider returns a rate lookup that re-reads the file on each call,
// falling back to the default when unreadable.
func Provider(path string) func() float64 {
	return func() float64 {
		r, err := Load(path)
		if err != nil || r.BTC <= 0 {
			return defaultBTC
		}
		return r.BTC
	}
}
