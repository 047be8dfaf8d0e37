package cashu

import (
	"encoding/json"
	"math/big"
)

// Unit is a closed sum type for the settlement units this rail supports.
// The spec leaves the unit/on-chain-conversion table implementation
// defined (§9 Open Questions); MilliStrk is the default and only unit
// wired to a concrete smart-contract asset, with Strk kept as a coarser
// display denomination and room left for more units without touching
// callers (they all work against ConversionFactor/String).
type Unit int

const (
	MilliStrk Unit = iota
	Strk
)

func (u Unit) String() string {
	switch u {
	case MilliStrk:
		return "millistrk"
	case Strk:
		return "strk"
	default:
		return "unknown"
	}
}

func ParseUnit(s string) (Unit, error) {
	switch s {
	case "millistrk":
		return MilliStrk, nil
	case "strk":
		return Strk, nil
	default:
		return 0, ErrUnitNotSupported
	}
}

func (u Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *Unit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUnit(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ConversionFactor returns the number of the underlying on-chain base
// unit ("fri", 10^-18 STRK) that one unit of u represents. millistrk ->
// 10^15 fri, per spec §9's example.
func (u Unit) ConversionFactor() *big.Int {
	switch u {
	case MilliStrk:
		return new(big.Int).SetUint64(1_000_000_000_000_000)
	case Strk:
		return new(big.Int).SetUint64(1_000_000_000_000_000_000)
	default:
		return big.NewInt(0)
	}
}

// IsAssetSupported reports whether the on-chain asset symbol settles in
// this unit. Grounded on the node's liquidity-source asset gate (§4.5
// step 2) which rejects a melt quote whose asset does not match the
// requested unit.
func (u Unit) IsAssetSupported(asset string) bool {
	switch u {
	case MilliStrk, Strk:
		return asset == "STRK"
	default:
		return false
	}
}

// Method is a closed sum type for settlement methods. Starknet is the
// only concrete backend wired in this module; the type stays extensible
// (e.g. an Ethereum backend, per the liquidity-source dependency survey)
// without changing any caller signature.
type Method int

const (
	Starknet Method = iota
)

func (m Method) String() string {
	switch m {
	case Starknet:
		return "starknet"
	default:
		return "unknown"
	}
}

func ParseMethod(s string) (Method, error) {
	switch s {
	case "starknet":
		return Starknet, nil
	default:
		return 0, ErrMethodNotSupported
	}
}

func (m Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Method) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
