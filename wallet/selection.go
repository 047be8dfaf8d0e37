package wallet

import (
	"fmt"
	"sort"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/wallet/storage"
)

func (w *Wallet) unspentByUnit(nodeURL string, unit cashu.Unit) ([]storage.DBProof, error) {
	all, err := w.db.GetProofsByNode(nodeURL)
	if err != nil {
		return nil, err
	}
	out := make([]storage.DBProof, 0, len(all))
	for _, p := range all {
		if p.Status != storage.ProofUnspent {
			continue
		}
		ks, ok := w.keysetFor(nodeURL, p.Id)
		if !ok || ks.Unit != unit {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// SelectExact implements the first half of §4.8's selection algorithm:
// try to reconstruct target exactly from the available denominations,
// greedily taking the largest unspent proof that still fits the
// remainder. It returns ok=false (with no side effects) if the greedy
// pass cannot reach target exactly, so the caller can fall back to
// SelectCovering.
func (w *Wallet) SelectExact(nodeURL string, unit cashu.Unit, target cashu.Amount) ([]storage.DBProof, bool, error) {
	pool, err := w.unspentByUnit(nodeURL, unit)
	if err != nil {
		return nil, false, err
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Amount > pool[j].Amount })

	var selected []storage.DBProof
	remaining := target
	for _, p := range pool {
		if remaining == 0 {
			break
		}
		if p.Amount <= remaining {
			selected = append(selected, p)
			remaining -= p.Amount
		}
	}
	if remaining != 0 {
		return nil, false, nil
	}
	return selected, true, nil
}

// SelectCovering implements the fallback half of §4.8: the smallest set
// of unspent proofs (by count, greedy-largest-first) whose sum is at
// least target. The caller is responsible for swapping the result at
// the node for an exact-amount subset plus change when sum > target.
func (w *Wallet) SelectCovering(nodeURL string, unit cashu.Unit, target cashu.Amount) ([]storage.DBProof, cashu.Amount, error) {
	pool, err := w.unspentByUnit(nodeURL, unit)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Amount > pool[j].Amount })

	var selected []storage.DBProof
	var sum cashu.Amount
	for _, p := range pool {
		if sum >= target {
			break
		}
		selected = append(selected, p)
		sum, err = sum.Add(p.Amount)
		if err != nil {
			return nil, 0, err
		}
	}
	if sum < target {
		return nil, 0, cashu.ErrNotEnoughFunds
	}
	return selected, sum, nil
}

// Select runs the full §4.8 algorithm: exact reconstruction first, a
// covering set otherwise.
func (w *Wallet) Select(nodeURL string, unit cashu.Unit, target cashu.Amount) ([]storage.DBProof, cashu.Amount, error) {
	if exact, ok, err := w.SelectExact(nodeURL, unit, target); err != nil {
		return nil, 0, err
	} else if ok {
		return exact, target, nil
	}
	return w.SelectCovering(nodeURL, unit, target)
}

// PlanSpending implements §4.8's plan_spending: walk preferredNodes in
// order allocating min(available, remaining), then distribute any
// remainder across the wallet's other known nodes in descending balance
// order. Duplicate entries in preferredNodes are rejected.
func (w *Wallet) PlanSpending(total cashu.Amount, unit cashu.Unit, preferredNodes []string) (map[string]cashu.Amount, error) {
	seen := make(map[string]bool, len(preferredNodes))
	for _, n := range preferredNodes {
		if seen[n] {
			return nil, cashu.Build("duplicate preferred node in spending plan", cashu.InvalidRequestErrCode)
		}
		seen[n] = true
	}

	plan := make(map[string]cashu.Amount)
	remaining := total

	allocate := func(nodeURL string) error {
		if remaining == 0 {
			return nil
		}
		balance, err := w.Balance(nodeURL, unit)
		if err != nil {
			return err
		}
		take := balance
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			return nil
		}
		plan[nodeURL] += take
		remaining -= take
		return nil
	}

	for _, n := range preferredNodes {
		if err := allocate(n); err != nil {
			return nil, err
		}
	}
	if remaining == 0 {
		return plan, nil
	}

	w.mu.RLock()
	others := make([]string, 0, len(w.nodes))
	for n := range w.nodes {
		if !seen[n] {
			others = append(others, n)
		}
	}
	w.mu.RUnlock()

	sort.Slice(others, func(i, j int) bool {
		bi, _ := w.Balance(others[i], unit)
		bj, _ := w.Balance(others[j], unit)
		return bi > bj
	})
	for _, n := range others {
		if err := allocate(n); err != nil {
			return nil, err
		}
		if remaining == 0 {
			break
		}
	}

	if remaining > 0 {
		available, _ := total.Sub(remaining)
		return nil, cashu.Build(
			fmt.Sprintf("not enough funds across known nodes: need %d, have %d", total, available),
			cashu.NotEnoughFundsErrCode,
		)
	}
	return plan, nil
}
