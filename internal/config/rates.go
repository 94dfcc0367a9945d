package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BaseCurrency is the currency every rate is quoted against.
const BaseCurrency = "USD"

// DefaultExchangeRates returns units of each currency per one USD.
func DefaultExchangeRates() map[string]float64 {
	return map[string]float64{
		"USD": 1, "PKR": 278.5, "SGD": 1.35, "EUR": 0.92, "GBP": 0.79,
		"AED": 3.67, "SAR": 3.75, "INR": 83, "MYR": 4.75, "THB": 36,
		"IDR": 15700, "PHP": 56, "CNY": 7.2, "JPY": 150, "KRW": 1330,
		"HKD": 7.8, "CAD": 1.35, "AUD": 1.52, "CHF": 0.88, "SEK": 10.5,
		"NOK": 10.8, "DKK": 6.85, "PLN": 4.0, "BRL": 4.95, "MXN": 17,
		"ARS": 850, "CLP": 950, "ZAR": 18.5, "EGP": 31, "NGN": 1600,
	}
}

// ExchangeRates is an immutable snapshot of the rate table.
type ExchangeRates struct {
	rates map[string]decimal.Decimal
}

func NewExchangeRates(raw map[string]float64) (ExchangeRates, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for code, value := range raw {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if value <= 0 {
			return ExchangeRates{}, errors.New("exchange rate for " + code + " must be positive")
		}
		rates[code] = decimal.NewFromFloat(value)
	}
	if _, ok := rates[BaseCurrency]; !ok {
		rates[BaseCurrency] = decimal.NewFromInt(1)
	}
	return ExchangeRates{rates: rates}, nil
}

// Rate returns the units of code per USD. Unknown currencies resolve to 1.
func (r ExchangeRates) Rate(code string) decimal.Decimal {
	if rate, ok := r.rates[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

// Convert moves amount from one currency to another through USD.
func (r ExchangeRates) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	if strings.EqualFold(from, to) || from == "" || to == "" {
		return amount
	}
	usd := amount.Div(r.Rate(from))
	return usd.Mul(r.Rate(to))
}

type RatesHolder struct {
	current atomic.Value // holds ExchangeRates
}

// NewRatesHolder loads rates.yml when present and keeps it hot-reloaded.
func NewRatesHolder(log *zap.Logger) (*RatesHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/fintrack")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FINTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fromFile = false
		v.SetDefault("rates", DefaultExchangeRates())
	}

	rates, err := loadRates(v)
	if err != nil {
		return nil, err
	}

	holder := &RatesHolder{}
	holder.current.Store(rates)

	if fromFile {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := loadRates(v)
			if err != nil {
				log.Warn("exchange rates reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("exchange rates reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticRatesHolder returns a holder that never reloads.
func NewStaticRatesHolder(raw map[string]float64) (*RatesHolder, error) {
	rates, err := NewExchangeRates(raw)
	if err != nil {
		return nil, err
	}
	holder := &RatesHolder{}
	holder.current.Store(rates)
	return holder, nil
}

func (h *RatesHolder) Get() ExchangeRates {
	return h.current.Load().(ExchangeRates)
}

func loadRates(v *viper.Viper) (ExchangeRates, error) {
	raw := map[string]float64{}
	if err := v.UnmarshalKey("rates", &raw); err != nil {
		return ExchangeRates{}, err
	}
	if len(raw) == 0 {
		return ExchangeRates{}, errors.New("rates cannot be empty")
	}
	return NewExchangeRates(raw)
}
