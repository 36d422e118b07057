package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/inventory"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/log2"
	"github.com/vendtech/vendcore/tele"
)

// Maintenance is the admin session. Bulk coin and item operations loop
// unit calls into the machine and stop at the first failure without
// rolling back: hardware cannot un-deposit a coin, so partial
// application is accepted behavior and the report names the failed unit.
type Maintenance struct {
	id     string
	log    *log2.Log
	m      *machine.Machine
	tele   tele.Teler
	notify NotifyFunc
}

func NewMaintenance(log *log2.Log, m *machine.Machine, t tele.Teler, notify NotifyFunc) *Maintenance {
	if t == nil {
		t = tele.Noop{}
	}
	return &Maintenance{
		id:     uuid.NewString(),
		log:    log,
		m:      m,
		tele:   t,
		notify: notify,
	}
}

func (ms *Maintenance) ID() string { return ms.id }

func (ms *Maintenance) status(format string, args ...interface{}) {
	e := Event{Session: ms.id, Kind: EventStatus, Message: fmt.Sprintf(format, args...)}
	ms.log.Infof("maintenance %s", e.Message)
	notify(ms.notify, e)
}

func (ms *Maintenance) fail(err error) error {
	ms.log.Errorf("maintenance %v", err)
	notify(ms.notify, Event{Session: ms.id, Kind: EventError, Err: err})
	return err
}

// Start enters Maintenance. The central transition guard enforces that
// the machine is Idle.
func (ms *Maintenance) Start() error {
	if err := ms.m.ChangeState(machine.StateMaintenance); err != nil {
		return ms.fail(err)
	}
	ms.tele.State(machine.StateMaintenance.String())
	ms.status("maintenance started")
	return nil
}

// Stop always succeeds and returns the machine to Idle regardless of
// prior state. This is the recovery path out of a stuck Refunding or
// Dispensing after an external fault.
func (ms *Maintenance) Stop() {
	_ = ms.m.ChangeState(machine.StateIdle)
	ms.tele.State(machine.StateIdle.String())
	ms.status("maintenance stopped")
}

func (ms *Maintenance) State() machine.State { return ms.m.State() }

// DepositCoins inserts count coins of n one unit at a time, stopping at
// the first failure. Units deposited before the failure stay deposited.
func (ms *Maintenance) DepositCoins(n currency.Nominal, count uint) error {
	ms.status("depositing %d coins of %s", count, n.Format100I())
	for i := uint(0); i < count; i++ {
		if err := ms.m.InsertCoin(n); err != nil {
			return ms.fail(errors.Annotatef(err, "deposit unit=%d of %d", i+1, count))
		}
	}
	ms.status("all %d coins of %s deposited", count, n.Format100I())
	return nil
}

func (ms *Maintenance) WithdrawCoins(n currency.Nominal, count uint) error {
	ms.status("withdrawing %d coins of %s", count, n.Format100I())
	for i := uint(0); i < count; i++ {
		if err := ms.m.WithdrawCoin(n); err != nil {
			return ms.fail(errors.Annotatef(err, "withdraw unit=%d of %d", i+1, count))
		}
	}
	ms.status("all %d coins of %s withdrawn", count, n.Format100I())
	return nil
}

func (ms *Maintenance) StockItems(slotNum int, count uint) error {
	ms.status("stocking %d items into slot %d", count, slotNum)
	for i := uint(0); i < count; i++ {
		if err := ms.m.StockItem(slotNum); err != nil {
			return ms.fail(errors.Annotatef(err, "stock unit=%d of %d", i+1, count))
		}
	}
	ms.status("all %d items stocked into slot %d", count, slotNum)
	return nil
}

func (ms *Maintenance) RemoveItems(slotNum int, count uint) error {
	ms.status("removing %d items from slot %d", count, slotNum)
	for i := uint(0); i < count; i++ {
		if err := ms.m.RemoveItem(slotNum); err != nil {
			return ms.fail(errors.Annotatef(err, "remove unit=%d of %d", i+1, count))
		}
	}
	ms.status("all %d items removed from slot %d", count, slotNum)
	return nil
}

// AssignSlot is single-shot on purpose: multi-slot assignment in one
// call is too error-prone for an operator.
func (ms *Maintenance) AssignSlot(slotNum int, item catalog.Item) error {
	if err := ms.m.AssignSlot(slotNum, item); err != nil {
		return ms.fail(err)
	}
	ms.status("slot %d assigned to %s", slotNum, item.Name)
	return nil
}

func (ms *Maintenance) UnassignSlot(slotNum int) error {
	if err := ms.m.UnassignSlot(slotNum); err != nil {
		return ms.fail(err)
	}
	ms.status("slot %d unassigned", slotNum)
	return nil
}

// ViewCoins passes through to the machine guard: till contents are
// visible in Maintenance only.
func (ms *Maintenance) ViewCoins() (*currency.NominalGroup, error) {
	counts, err := ms.m.CoinCounts()
	if err != nil {
		return nil, ms.fail(err)
	}
	return counts, nil
}

func (ms *Maintenance) ViewCapacities() *currency.NominalGroup { return ms.m.CoinCapacities() }

func (ms *Maintenance) ViewItems() ([]*inventory.Slot, error) {
	slots, err := ms.m.Slots()
	if err != nil {
		return nil, ms.fail(err)
	}
	return slots, nil
}
