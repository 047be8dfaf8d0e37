package node

import (
	"sync"

	"github.com/starknuts/starknuts/cashu"
)

// Bounds is an optional (min, max) amount window for one (method, unit)
// pair; zero means unbounded on that side.
type Bounds struct {
	Min cashu.Amount
	Max cashu.Amount
}

func (b Bounds) allows(amount cashu.Amount) bool {
	if b.Min != 0 && amount < b.Min {
		return false
	}
	if b.Max != 0 && amount > b.Max {
		return false
	}
	return true
}

// Settings holds the node's administrative toggles — mint/melt enabled,
// per-(method,unit) amount bounds. It is read on every mint-quote/melt-
// quote request and written only by administrative operations, so it
// uses the reader-writer discipline the concurrency model requires of
// shared, mostly-read state (§5).
type Settings struct {
	mu sync.RWMutex

	mintDisabled bool
	meltDisabled bool
	mintBounds   map[UnitMethodKey]Bounds
	meltBounds   map[UnitMethodKey]Bounds
}

func NewSettings() *Settings {
	return &Settings{
		mintBounds: make(map[UnitMethodKey]Bounds),
		meltBounds: make(map[UnitMethodKey]Bounds),
	}
}

func (s *Settings) SetMintDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mintDisabled = disabled
}

func (s *Settings) SetMeltDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meltDisabled = disabled
}

func (s *Settings) SetMintBounds(method cashu.Method, unit cashu.Unit, b Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mintBounds[UnitMethodKey{Method: method, Unit: unit}] = b
}

func (s *Settings) SetMeltBounds(method cashu.Method, unit cashu.Unit, b Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meltBounds[UnitMethodKey{Method: method, Unit: unit}] = b
}

func (s *Settings) checkMint(method cashu.Method, unit cashu.Unit, amount cashu.Amount) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mintDisabled {
		return cashu.ErrMintDisabled
	}
	b, ok := s.mintBounds[UnitMethodKey{Method: method, Unit: unit}]
	if !ok {
		return cashu.ErrUnitNotSupported
	}
	if !b.allows(amount) {
		return cashu.ErrAmountOutOfBounds
	}
	return nil
}

func (s *Settings) checkMelt(method cashu.Method, unit cashu.Unit, amount cashu.Amount) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meltDisabled {
		return cashu.ErrMeltDisabled
	}
	b, ok := s.meltBounds[UnitMethodKey{Method: method, Unit: unit}]
	if !ok {
		return cashu.ErrUnitNotSupported
	}
	if !b.allows(amount) {
		return cashu.ErrAmountOutOfBounds
	}
	return nil
}

// checkMeltGate runs the settings checks a melt quote can make before
// its amount is known (the amount only emerges after the payment
// request is deserialized): disabled flag and unit support.
func (s *Settings) checkMeltGate(method cashu.Method, unit cashu.Unit) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meltDisabled {
		return cashu.ErrMeltDisabled
	}
	if _, ok := s.meltBounds[UnitMethodKey{Method: method, Unit: unit}]; !ok {
		return cashu.ErrUnitNotSupported
	}
	return nil
}
