// Package money provides the machine's bounded coin store and the
// change-making loop that drains it.
//
// Overview:
// - customer/admin -> Deposit/Withdraw, one coin at a time
// - session refund or overpayment -> Dispense, greedy largest-first
package money

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/log2"
)

var (
	ErrCashboxFull  = errors.New("cashbox capacity exceeded for this nominal")
	ErrCashboxEmpty = errors.New("no coins of this nominal to withdraw")
)

// UnresolvedChangeError reports change the cashbox could not decompose.
// Under a currency-complete nominal set this is unreachable from normal
// operation, so callers treat it as a hardware-level fault.
type UnresolvedChangeError struct {
	Residual currency.Amount
}

func (e *UnresolvedChangeError) Error() string {
	return fmt.Sprintf("unresolved change, residual=%s", e.Residual.Format100I())
}

// Cashbox tracks per-nominal count and capacity. The accepted nominal
// set is exactly the capacity key set and never changes after New.
// Counts move one unit at a time through Deposit/Withdraw only.
type Cashbox struct {
	log    *log2.Log
	counts currency.NominalGroup
	caps   currency.NominalGroup
	order  []currency.Nominal // descending, fixed scan order for change
}

func NewCashbox(log *log2.Log, capacities map[currency.Nominal]uint) (*Cashbox, error) {
	if len(capacities) == 0 {
		return nil, errors.New("cashbox needs at least one accepted nominal")
	}
	cb := &Cashbox{log: log}
	valid := make([]currency.Nominal, 0, len(capacities))
	for n, max := range capacities {
		if n == 0 {
			return nil, errors.New("cashbox nominal must be positive")
		}
		if max == 0 {
			return nil, errors.Errorf("cashbox nominal=%s capacity must be positive", n.Format100I())
		}
		valid = append(valid, n)
	}
	cb.counts.SetValid(valid)
	cb.caps.SetValid(valid)
	for n, max := range capacities {
		cb.caps.MustAdd(n, max)
	}
	cb.order = cb.caps.Nominals()
	return cb, nil
}

// Deposit accepts exactly one coin. Per-unit granularity is load-bearing:
// bulk admin deposits must report the exact unit that hit capacity.
func (cb *Cashbox) Deposit(n currency.Nominal) error {
	if !cb.counts.Contains(n) {
		return errors.Annotatef(currency.ErrNominalInvalid, "deposit n=%s", n.Format100I())
	}
	count := cb.counts.InTube(n)
	if count+1 > cb.caps.InTube(n) {
		return errors.Annotatef(ErrCashboxFull, "deposit n=%s count=%d", n.Format100I(), count)
	}
	if err := cb.counts.Add(n); err != nil {
		return err
	}
	cb.log.Debugf("cashbox deposit n=%s count=%d", n.Format100I(), count+1)
	return nil
}

func (cb *Cashbox) Withdraw(n currency.Nominal) error {
	if !cb.counts.Contains(n) {
		return errors.Annotatef(currency.ErrNominalInvalid, "withdraw n=%s", n.Format100I())
	}
	if cb.counts.InTube(n) == 0 {
		return errors.Annotatef(ErrCashboxEmpty, "withdraw n=%s", n.Format100I())
	}
	if err := cb.counts.Sub(n); err != nil {
		return err
	}
	cb.log.Debugf("cashbox withdraw n=%s count=%d", n.Format100I(), cb.counts.InTube(n))
	return nil
}

// Dispense pays out amount with the fewest coins the current stock
// allows: scan nominals largest first, withdraw the first that fits and
// has stock, restart the scan. Coins withdrawn before a failure stay
// withdrawn; the returned group says what actually came out.
func (cb *Cashbox) Dispense(amount currency.Amount) (*currency.NominalGroup, error) {
	dispensed := &currency.NominalGroup{}
	dispensed.SetValid(cb.order)
	remaining := amount
	for remaining > 0 {
		n, err := cb.counts.ExpendOneOrdered(cb.order, remaining)
		if err != nil {
			cb.log.Errorf("cashbox dispense amount=%s residual=%s stock=%s",
				amount.Format100I(), remaining.Format100I(), cb.counts.String())
			return dispensed, &UnresolvedChangeError{Residual: remaining}
		}
		dispensed.MustAdd(n, 1)
		remaining -= currency.Amount(n)
	}
	cb.log.Debugf("cashbox dispensed=%s", dispensed.String())
	return dispensed, nil
}

// Counts returns a snapshot; mutations do not reach the cashbox.
func (cb *Cashbox) Counts() *currency.NominalGroup { return cb.counts.Copy() }

func (cb *Cashbox) Capacities() *currency.NominalGroup { return cb.caps.Copy() }

// Nominals is the accepted set sorted descending by value.
func (cb *Cashbox) Nominals() []currency.Nominal {
	order := make([]currency.Nominal, len(cb.order))
	copy(order, cb.order)
	return order
}

func (cb *Cashbox) Accepts(n currency.Nominal) bool { return cb.counts.Contains(n) }

func (cb *Cashbox) Total() currency.Amount { return cb.counts.Total() }
