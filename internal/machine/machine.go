// Package machine glues the coin store and the slot store under one
// state machine. The machine exposes operations, not actions: sessions
// (internal/session) sequence operations into customer or admin flows.
//
// State validation is deliberately asymmetric. ChangeState enforces a
// single central guard, Maintenance entry from Idle only; every other
// transition is accepted and the real gating of any given operation is
// the per-operation state check on the method that performs it.
package machine

import (
	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/inventory"
	"github.com/vendtech/vendcore/internal/money"
	"github.com/vendtech/vendcore/log2"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

const maxSlotSize = 30

// Spec is the immutable physical configuration of one machine.
type Spec struct {
	// SlotCount must be even: machines with odd layouts do not ship.
	SlotCount int
	// SlotSize is the per-slot item capacity, same across all slots.
	SlotSize uint32
	// CoinCapacities is the accepted nominal set with per-nominal
	// cashbox capacity.
	CoinCapacities map[currency.Nominal]uint
}

// Machine is a single vending machine instance. One logical actor at a
// time: the state machine's mutual exclusion (only one of Ordering,
// Paying, Maintenance is reachable from Idle) is the only concurrency
// guard, so a multi-user caller must serialize access externally.
type Machine struct {
	log     *log2.Log
	state   State
	cashbox *money.Cashbox
	inv     *inventory.Inventory
	spec    Spec
}

// New validates spec once and produces a machine in Idle, or a
// descriptive error and no machine.
func New(log *log2.Log, spec Spec) (*Machine, error) {
	if spec.SlotCount <= 0 {
		return nil, errors.Errorf("slot count=%d must be positive", spec.SlotCount)
	}
	if spec.SlotCount%2 != 0 {
		return nil, errors.Errorf("slot count=%d must be even", spec.SlotCount)
	}
	if spec.SlotSize == 0 {
		return nil, errors.New("slot size must be positive")
	}
	if spec.SlotSize > maxSlotSize {
		return nil, errors.Errorf("slot size=%d above maximum %d", spec.SlotSize, maxSlotSize)
	}
	cashbox, err := money.NewCashbox(log, spec.CoinCapacities)
	if err != nil {
		return nil, errors.Annotate(err, "machine.New")
	}
	return &Machine{
		log:     log,
		state:   StateIdle,
		cashbox: cashbox,
		inv:     inventory.New(log, spec.SlotCount, spec.SlotSize),
		spec:    spec,
	}, nil
}

func (m *Machine) State() State { return m.state }

// ChangeState performs the sole centrally enforced transition check:
// Maintenance may only be entered from Idle. Callers are responsible for
// requesting the remaining transitions at correct points.
func (m *Machine) ChangeState(new State) error {
	if new == StateMaintenance && m.state != StateIdle {
		return errors.Annotatef(ErrInvalidStateTransition, "%s -> %s", m.state, new)
	}
	m.log.Debugf("machine state %s -> %s", m.state, new)
	m.state = new
	return nil
}

// Spec returns the immutable construction parameters.
func (m *Machine) Spec() Spec { return m.spec }

func (m *Machine) in(states ...State) bool {
	for _, s := range states {
		if m.state == s {
			return true
		}
	}
	return false
}

// InsertCoin accepts one coin while Paying (customer) or Maintenance
// (admin restocking coins). An invalid-state insert is a no-op against
// the cashbox: the coin is rejected before it is ever counted.
func (m *Machine) InsertCoin(n currency.Nominal) error {
	if !m.in(StatePaying, StateMaintenance) {
		return errors.Annotatef(ErrInvalidStateTransition, "insert coin in state=%s", m.state)
	}
	return m.cashbox.Deposit(n)
}

// WithdrawCoin releases one coin while Refunding (customer change or
// refund) or Maintenance (admin collecting revenue).
func (m *Machine) WithdrawCoin(n currency.Nominal) error {
	if !m.in(StateRefunding, StateMaintenance) {
		return errors.Annotatef(ErrInvalidStateTransition, "withdraw coin in state=%s", m.state)
	}
	return m.cashbox.Withdraw(n)
}

// DispenseChange pays out amount with the fewest coins available.
// Allowed in the same states as WithdrawCoin; a money.UnresolvedChangeError
// from the cashbox passes through untouched.
func (m *Machine) DispenseChange(amount currency.Amount) (*currency.NominalGroup, error) {
	if !m.in(StateRefunding, StateMaintenance) {
		return nil, errors.Annotatef(ErrInvalidStateTransition, "dispense change in state=%s", m.state)
	}
	return m.cashbox.Dispense(amount)
}

// CoinCounts is Maintenance-only; capacities are public knowledge but
// the till contents are not.
func (m *Machine) CoinCounts() (*currency.NominalGroup, error) {
	if m.state != StateMaintenance {
		return nil, errors.Annotatef(ErrInvalidStateTransition, "view coin counts in state=%s", m.state)
	}
	return m.cashbox.Counts(), nil
}

func (m *Machine) CoinCapacities() *currency.NominalGroup { return m.cashbox.Capacities() }

// Nominals is the accepted set sorted descending by value.
func (m *Machine) Nominals() []currency.Nominal { return m.cashbox.Nominals() }

// Slots exposes the slot array while Ordering (customer browsing) or
// Maintenance (admin). Unassigned slots appear as nil gaps.
func (m *Machine) Slots() ([]*inventory.Slot, error) {
	if !m.in(StateOrdering, StateMaintenance) {
		return nil, errors.Annotatef(ErrInvalidStateTransition, "view slots in state=%s", m.state)
	}
	return m.inv.Snapshot(), nil
}

// StockByID aggregates stock for one item id across all slots. Same
// visibility as Slots.
func (m *Machine) StockByID(id uint32) (uint32, catalog.Item, bool, error) {
	if !m.in(StateOrdering, StateMaintenance) {
		return 0, catalog.Item{}, false, errors.Annotatef(ErrInvalidStateTransition, "view stock in state=%s", m.state)
	}
	total, item, found := m.inv.StockByID(id)
	return total, item, found, nil
}

func (m *Machine) AssignSlot(slotNum int, item catalog.Item) error {
	if m.state != StateMaintenance {
		return errors.Annotatef(ErrInvalidStateTransition, "assign slot in state=%s", m.state)
	}
	return m.inv.Assign(slotNum, item)
}

func (m *Machine) UnassignSlot(slotNum int) error {
	if m.state != StateMaintenance {
		return errors.Annotatef(ErrInvalidStateTransition, "unassign slot in state=%s", m.state)
	}
	return m.inv.Unassign(slotNum)
}

func (m *Machine) StockItem(slotNum int) error {
	if m.state != StateMaintenance {
		return errors.Annotatef(ErrInvalidStateTransition, "stock item in state=%s", m.state)
	}
	return m.inv.Restock(slotNum)
}

// RemoveItem takes one unit out of a slot, the admin path for expired
// or broken product.
func (m *Machine) RemoveItem(slotNum int) error {
	if m.state != StateMaintenance {
		return errors.Annotatef(ErrInvalidStateTransition, "remove item in state=%s", m.state)
	}
	return m.inv.RemoveOne(slotNum)
}

// DispenseItem drops one unit of id to the customer while Dispensing;
// Maintenance is also accepted so an operator can test the mechanism.
func (m *Machine) DispenseItem(id uint32) error {
	if !m.in(StateDispensing, StateMaintenance) {
		return errors.Annotatef(ErrInvalidStateTransition, "dispense item in state=%s", m.state)
	}
	return m.inv.DispenseByID(id)
}
