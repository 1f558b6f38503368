package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	yaml "gopkg.in/yaml.v2"

	"github.com/lumafi/flasharb/dex"
	"github.com/lumafi/flasharb/pricing"
	"github.com/lumafi/flasharb/types"
)

// Markets is the loaded markets table: which DEXes to scan, which pairs to
// scan them for, and the sanity bounds guarding each pair.
type Markets struct {
	Dexes  []dex.Config
	Pairs  []types.TokenPair
	Bounds map[string]pricing.Bounds
}

type marketsFile struct {
	Dexes []dexEntry  `yaml:"dexes"`
	Pairs []pairEntry `yaml:"pairs"`
}

type dexEntry struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Router       string           `yaml:"router"`
	Quoter       string           `yaml:"quoter"`
	FeeBps       int64            `yaml:"fee_bps"`
	FeeTiers     []uint32         `yaml:"fee_tiers"`
	PoolID       string           `yaml:"pool_id"`
	TokenIndices map[string]int64 `yaml:"token_indices"`
	ExtraData    string           `yaml:"extra_data"`
}

type pairEntry struct {
	Name          string `yaml:"name"`
	Base          string `yaml:"base"`
	Quote         string `yaml:"quote"`
	BaseDecimals  uint8  `yaml:"base_decimals"`
	QuoteDecimals uint8  `yaml:"quote_decimals"`
	AmountIn      string `yaml:"amount_in"`
	MinRate       string `yaml:"min_rate"`
	MaxRate       string `yaml:"max_rate"`
}

// LoadMarkets reads and validates the YAML markets table.
func LoadMarkets(path string) (*Markets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}
	return ParseMarkets(data)
}

// ParseMarkets decodes a markets table from raw YAML.
func ParseMarkets(data []byte) (*Markets, error) {
	var file marketsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode markets file: %w", err)
	}

	if len(file.Dexes) < 2 {
		return nil, fmt.Errorf("markets file must configure at least two dexes, got %d", len(file.Dexes))
	}
	if len(file.Pairs) == 0 {
		return nil, fmt.Errorf("markets file must configure at least one pair")
	}

	markets := &Markets{
		Bounds: make(map[string]pricing.Bounds),
	}

	seenDex := make(map[types.DexID]bool)
	for _, entry := range file.Dexes {
		cfg, err := entry.toConfig()
		if err != nil {
			return nil, fmt.Errorf("dex %q: %w", entry.ID, err)
		}
		if seenDex[cfg.ID] {
			return nil, fmt.Errorf("dex %q configured twice", entry.ID)
		}
		seenDex[cfg.ID] = true
		markets.Dexes = append(markets.Dexes, cfg)
	}

	seenPair := make(map[string]bool)
	for _, entry := range file.Pairs {
		pair, bounds, err := entry.toPair()
		if err != nil {
			return nil, fmt.Errorf("pair %q: %w", entry.Name, err)
		}
		if seenPair[pair.Name] {
			return nil, fmt.Errorf("pair %q configured twice", entry.Name)
		}
		seenPair[pair.Name] = true
		markets.Pairs = append(markets.Pairs, pair)
		if bounds != nil {
			markets.Bounds[pair.Name] = *bounds
		}
	}

	return markets, nil
}

func (e *dexEntry) toConfig() (dex.Config, error) {
	id, err := types.ParseDexID(e.ID)
	if err != nil {
		return dex.Config{}, err
	}
	if !common.IsHexAddress(e.Router) {
		return dex.Config{}, fmt.Errorf("router %q is not a valid address", e.Router)
	}

	cfg := dex.Config{
		ID:       id,
		Name:     e.Name,
		Router:   common.HexToAddress(e.Router),
		FeeBps:   e.FeeBps,
		FeeTiers: e.FeeTiers,
	}
	if cfg.Name == "" {
		cfg.Name = id.String()
	}

	switch id {
	case types.DexUniswapV3:
		if !common.IsHexAddress(e.Quoter) {
			return dex.Config{}, fmt.Errorf("quoter %q is not a valid address", e.Quoter)
		}
		if len(e.FeeTiers) == 0 {
			return dex.Config{}, fmt.Errorf("at least one fee tier required")
		}
		cfg.Quoter = common.HexToAddress(e.Quoter)
	case types.DexBalancer:
		if !strings.HasPrefix(e.PoolID, "0x") || len(e.PoolID) != 66 {
			return dex.Config{}, fmt.Errorf("pool_id %q is not a 32-byte hex value", e.PoolID)
		}
		cfg.PoolID = common.HexToHash(e.PoolID)
	case types.DexCurve:
		if len(e.TokenIndices) < 2 {
			return dex.Config{}, fmt.Errorf("token_indices must map at least two tokens")
		}
		cfg.TokenIndices = make(map[common.Address]int64, len(e.TokenIndices))
		for addr, idx := range e.TokenIndices {
			if !common.IsHexAddress(addr) {
				return dex.Config{}, fmt.Errorf("token index key %q is not a valid address", addr)
			}
			cfg.TokenIndices[common.HexToAddress(addr)] = idx
		}
	case types.DexDODO:
		if e.ExtraData != "" {
			raw, err := decodeHexBytes(e.ExtraData)
			if err != nil {
				return dex.Config{}, fmt.Errorf("extra_data: %w", err)
			}
			cfg.ExtraData = raw
		}
	}

	if id != types.DexUniswapV3 && cfg.FeeBps <= 0 {
		return dex.Config{}, fmt.Errorf("fee_bps must be positive")
	}

	return cfg, nil
}

func (e *pairEntry) toPair() (types.TokenPair, *pricing.Bounds, error) {
	if e.Name == "" {
		return types.TokenPair{}, nil, fmt.Errorf("name must be specified")
	}
	if !common.IsHexAddress(e.Base) {
		return types.TokenPair{}, nil, fmt.Errorf("base %q is not a valid address", e.Base)
	}
	if !common.IsHexAddress(e.Quote) {
		return types.TokenPair{}, nil, fmt.Errorf("quote %q is not a valid address", e.Quote)
	}
	if e.Base == e.Quote {
		return types.TokenPair{}, nil, fmt.Errorf("base and quote must differ")
	}

	amountIn, ok := new(big.Int).SetString(e.AmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		return types.TokenPair{}, nil, fmt.Errorf("amount_in %q is not a positive integer", e.AmountIn)
	}

	pair := types.TokenPair{
		Name:          e.Name,
		BaseToken:     common.HexToAddress(e.Base),
		QuoteToken:    common.HexToAddress(e.Quote),
		BaseDecimals:  e.BaseDecimals,
		QuoteDecimals: e.QuoteDecimals,
		AmountIn:      amountIn,
	}

	// Bounds are both-or-neither: a half-open range is a config mistake.
	if (e.MinRate == "") != (e.MaxRate == "") {
		return types.TokenPair{}, nil, fmt.Errorf("min_rate and max_rate must be set together")
	}
	if e.MinRate == "" {
		return pair, nil, nil
	}

	min, err := decimal.NewFromString(e.MinRate)
	if err != nil {
		return types.TokenPair{}, nil, fmt.Errorf("min_rate: %w", err)
	}
	max, err := decimal.NewFromString(e.MaxRate)
	if err != nil {
		return types.TokenPair{}, nil, fmt.Errorf("max_rate: %w", err)
	}
	if min.Sign() <= 0 || max.LessThan(min) {
		return types.TokenPair{}, nil, fmt.Errorf("rate bounds [%s, %s] are not a valid positive range", e.MinRate, e.MaxRate)
	}

	return pair, &pricing.Bounds{Min: min, Max: max}, nil
}

func decodeHexBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("%q must be 0x-prefixed hex", s)
	}
	raw := common.FromHex(s)
	if len(raw) == 0 && len(s) > 2 {
		return nil, fmt.Errorf("%q is not valid hex", s)
	}
	return raw, nil
}
