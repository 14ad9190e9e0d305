package agent

import (
	"fmt"
	"math"
)

// MarketMakerConfig parameterizes the quoting market maker.
type MarketMakerConfig struct {
	Spread           int64   `yaml:"spread" json:"spread"`                       // quoted width in ticks (> 0)
	Quantity         int64   `yaml:"quantity" json:"quantity"`                   // size of each quote (> 0)
	RefreshInterval  int64   `yaml:"refresh_interval" json:"refresh_interval"`   // simulated ns between requotes (> 0)
	MaxInventory     int64   `yaml:"max_inventory" json:"max_inventory"`         // |inventory| above which quotes are skewed (>= 0)
	InventoryPenalty float64 `yaml:"inventory_penalty" json:"inventory_penalty"` // ticks of skew per unit of inventory (>= 0)
}

// TakerConfig parameterizes the liquidity taker.
type TakerConfig struct {
	Intensity       float64 `yaml:"intensity" json:"intensity"` // expected arrivals per step
	SideBias        float64 `yaml:"side_bias" json:"side_bias"` // probability an arrival buys
	QuantityMean    float64 `yaml:"quantity_mean" json:"quantity_mean"`
	QuantityStd     float64 `yaml:"quantity_std" json:"quantity_std"`
	UseMarketOrders bool    `yaml:"use_market_orders" json:"use_market_orders"` // false sends crossing limit orders
}

// NoiseTraderConfig parameterizes the noise trader.
type NoiseTraderConfig struct {
	LimitIntensity    float64 `yaml:"limit_intensity" json:"limit_intensity"`
	CancelIntensity   float64 `yaml:"cancel_intensity" json:"cancel_intensity"`
	QuantityMean      float64 `yaml:"quantity_mean" json:"quantity_mean"`
	QuantityStd       float64 `yaml:"quantity_std" json:"quantity_std"`
	PriceVolatility   float64 `yaml:"price_volatility" json:"price_volatility"` // std dev of the offset from mid, in ticks
	CancelProbability float64 `yaml:"cancel_probability" json:"cancel_probability"`
}

// DefaultMarketMakerConfig returns the market maker's default quoting parameters.
func DefaultMarketMakerConfig() MarketMakerConfig {
	return MarketMakerConfig{
		Spread:           2,
		Quantity:         50,
		RefreshInterval:  50_000,
		MaxInventory:     1000,
		InventoryPenalty: 0.001,
	}
}

// DefaultTakerConfig returns the taker's default arrival and sizing parameters.
func DefaultTakerConfig() TakerConfig {
	return TakerConfig{
		Intensity:       0.8,
		SideBias:        0.5,
		QuantityMean:    40,
		QuantityStd:     10,
		UseMarketOrders: true,
	}
}

// DefaultNoiseTraderConfig returns the noise trader's default parameters.
func DefaultNoiseTraderConfig() NoiseTraderConfig {
	return NoiseTraderConfig{
		LimitIntensity:    1.5,
		CancelIntensity:   0.7,
		QuantityMean:      30,
		QuantityStd:       8,
		PriceVolatility:   5,
		CancelProbability: 0.3,
	}
}

// Validate returns an error if the config is invalid.
func (c MarketMakerConfig) Validate() error {
	if c.Spread <= 0 {
		return fmt.Errorf("market maker: spread must be positive, got %d", c.Spread)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("market maker: quantity must be positive, got %d", c.Quantity)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("market maker: refresh_interval must be positive, got %d", c.RefreshInterval)
	}
	if c.MaxInventory < 0 {
		return fmt.Errorf("market maker: max_inventory must be non-negative, got %d", c.MaxInventory)
	}
	return validateNonNegative("market maker: inventory_penalty", c.InventoryPenalty)
}

// Validate returns an error if the config is invalid.
func (c TakerConfig) Validate() error {
	if err := validateNonNegative("taker: intensity", c.Intensity); err != nil {
		return err
	}
	if err := validateProbability("taker: side_bias", c.SideBias); err != nil {
		return err
	}
	return validateQuantity("taker", c.QuantityMean, c.QuantityStd)
}

// Validate returns an error if the config is invalid.
func (c NoiseTraderConfig) Validate() error {
	if err := validateNonNegative("noise trader: limit_intensity", c.LimitIntensity); err != nil {
		return err
	}
	if err := validateNonNegative("noise trader: cancel_intensity", c.CancelIntensity); err != nil {
		return err
	}
	if err := validateQuantity("noise trader", c.QuantityMean, c.QuantityStd); err != nil {
		return err
	}
	if err := validateFinitePositive("noise trader: price_volatility", c.PriceVolatility); err != nil {
		return err
	}
	return validateProbability("noise trader: cancel_probability", c.CancelProbability)
}

func validateQuantity(prefix string, mean, std float64) error {
	if err := validateFinitePositive(prefix+": quantity_mean", mean); err != nil {
		return err
	}
	return validateFinitePositive(prefix+": quantity_std", std)
}

func validateFinitePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%s must be a finite positive number, got %v", name, v)
	}
	return nil
}

func validateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a finite non-negative number, got %v", name, v)
	}
	return nil
}

func validateProbability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
	}
	return nil
}
