package session

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/helpers"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/internal/money"
	"github.com/vendtech/vendcore/log2"
	"github.com/vendtech/vendcore/tele"
)

var (
	ErrOrderInProgress   = errors.New("another order is already in progress")
	ErrItemUnavailable   = errors.New("no such item in this machine")
	ErrInsufficientStock = errors.New("not enough stock for this item")
	ErrBasketEmpty       = errors.New("basket is empty")
	ErrUnderMaintenance  = errors.New("machine is under maintenance, customer actions are disabled")
)

type OrderPhase uint8

const (
	PhaseNotStarted OrderPhase = iota
	PhaseSelecting
	PhasePaying
	PhaseFulfilled
	PhaseCancelled
)

func (p OrderPhase) String() string {
	switch p {
	case PhaseSelecting:
		return "Selecting"
	case PhasePaying:
		return "Paying"
	case PhaseFulfilled:
		return "Fulfilled"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "NotStarted"
	}
}

type basketLine struct {
	item catalog.Item
	qty  uint32
}

// Order is one customer transaction: basket accumulation, payment
// tracking and settlement. It drives the machine state and never talks
// to a maintenance session.
type Order struct {
	id     string
	log    *log2.Log
	m      *machine.Machine
	tele   tele.Teler
	notify NotifyFunc

	phase  OrderPhase
	basket map[uint32]*basketLine
	// due is signed: negative means the customer overpaid and is owed
	// change. Minor currency units throughout, no floating point.
	due     int64
	balance currency.Amount
	price   currency.Amount
}

func NewOrder(log *log2.Log, m *machine.Machine, t tele.Teler, notify NotifyFunc) *Order {
	if t == nil {
		t = tele.Noop{}
	}
	return &Order{
		id:     uuid.NewString(),
		log:    log,
		m:      m,
		tele:   t,
		notify: notify,
		basket: make(map[uint32]*basketLine),
	}
}

func (o *Order) ID() string         { return o.id }
func (o *Order) Phase() OrderPhase  { return o.phase }
func (o *Order) Balance() currency.Amount { return o.balance }

// AmountDue is what the customer still owes; negative = overpaid.
func (o *Order) AmountDue() int64 { return o.due }

// Basket returns a copy of the current basket as item -> quantity.
func (o *Order) Basket() map[catalog.Item]uint32 {
	out := make(map[catalog.Item]uint32, len(o.basket))
	for _, line := range o.basket {
		out[line.item] = line.qty
	}
	return out
}

func (o *Order) status(format string, args ...interface{}) {
	e := Event{Session: o.id, Kind: EventStatus, Message: fmt.Sprintf(format, args...)}
	o.log.Infof("order %s", e.Message)
	notify(o.notify, e)
}

func (o *Order) fail(err error) error {
	o.log.Errorf("order %v", err)
	notify(o.notify, Event{Session: o.id, Kind: EventError, Err: err})
	return err
}

func (o *Order) underMaintenance() bool {
	return o.m.State() == machine.StateMaintenance
}

// Start opens the session: machine must be Idle and moves to Ordering.
func (o *Order) Start() error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	if o.m.State() != machine.StateIdle {
		return o.fail(errors.Annotatef(ErrOrderInProgress, "machine state=%s", o.m.State()))
	}
	if err := o.m.ChangeState(machine.StateOrdering); err != nil {
		return o.fail(err)
	}
	o.phase = PhaseSelecting
	o.status("order started, select items to add to your basket")
	return nil
}

// SelectItem adds one unit of id to the basket if aggregate slot stock
// covers the new quantity. The basket is untouched on any failure.
func (o *Order) SelectItem(id uint32) error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	stock, item, found, err := o.m.StockByID(id)
	if err != nil {
		return o.fail(err)
	}
	if !found {
		return o.fail(errors.Annotatef(ErrItemUnavailable, "id=%d", id))
	}
	var have uint32
	if line := o.basket[id]; line != nil {
		have = line.qty
	}
	if have+1 > stock {
		return o.fail(errors.Annotatef(ErrInsufficientStock, "%s stock=%d basket=%d", item.Name, stock, have))
	}
	if line := o.basket[id]; line != nil {
		line.qty++
	} else {
		o.basket[id] = &basketLine{item: item, qty: 1}
	}
	o.status("one %s added to your basket", item.Name)
	return nil
}

// DeselectItem removes one unit of id, dropping the basket entry when
// its quantity reaches zero.
func (o *Order) DeselectItem(id uint32) error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	line := o.basket[id]
	if line == nil {
		return o.fail(errors.Annotatef(ErrItemUnavailable, "id=%d not in basket", id))
	}
	line.qty--
	if line.qty == 0 {
		delete(o.basket, id)
		o.status("all %s removed from your basket", line.item.Name)
		return nil
	}
	o.status("one %s removed from your basket", line.item.Name)
	return nil
}

// Checkout totals the basket and moves the machine to Paying. A basket
// totalling zero settles immediately: free items need no coins.
func (o *Order) Checkout() error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	if len(o.basket) == 0 {
		return o.fail(ErrBasketEmpty)
	}
	o.price = 0
	for _, line := range o.basket {
		o.price += line.item.Price * currency.Amount(line.qty)
	}
	o.due = int64(o.price)
	if err := o.m.ChangeState(machine.StatePaying); err != nil {
		return o.fail(err)
	}
	o.phase = PhasePaying
	o.status("basket total %s, deposit coins to pay", o.price.Format100I())
	if o.due == 0 {
		return o.settle()
	}
	return nil
}

// DepositCoin accepts one coin. Cashbox errors pass through unchanged
// and leave the session waiting for a corrected retry. Reaching zero or
// negative due settles the order.
func (o *Order) DepositCoin(n currency.Nominal) error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	if err := o.m.InsertCoin(n); err != nil {
		return o.fail(err)
	}
	o.due -= int64(n)
	o.balance += currency.Amount(n)
	if o.due > 0 {
		o.status("deposited %s, remaining to pay %s", n.Format100I(), currency.Amount(o.due).Format100I())
		return nil
	}
	o.status("deposited %s, payment complete", n.Format100I())
	return o.settle()
}

// settle dispenses the basket, pays out any overpayment and resets the
// machine to Idle.
func (o *Order) settle() error {
	if err := o.m.ChangeState(machine.StateDispensing); err != nil {
		return o.fail(err)
	}
	var dispenseErrs []error
	for _, id := range o.sortedBasketIDs() {
		line := o.basket[id]
		for i := uint32(0); i < line.qty; i++ {
			if err := o.m.DispenseItem(id); err != nil {
				// Stock was verified at selection; a failure here is a
				// jammed mechanism. Keep dispensing the rest.
				dispenseErrs = append(dispenseErrs, o.fail(errors.Annotatef(err, "dispense %s unit=%d", line.item.Name, i+1)))
				continue
			}
			o.status("dispensed one %s", line.item.Name)
		}
	}
	change := currency.Amount(0)
	if o.due < 0 {
		change = currency.Amount(-o.due)
		if err := o.payOut(change); err != nil {
			return err
		}
		o.status("change %s dispensed", change.Format100I())
	}
	o.tele.Transaction(o.transaction(change, false, 0))
	o.reset(PhaseFulfilled)
	o.status("thank you for your purchase")
	return helpers.FoldErrors(dispenseErrs)
}

// Cancel behavior depends on the machine state at call time. During
// Ordering nothing was deposited and the basket is simply cleared;
// during Paying the full balance is refunded first.
func (o *Order) Cancel() error {
	if o.underMaintenance() {
		return o.fail(ErrUnderMaintenance)
	}
	switch o.m.State() {
	case machine.StateIdle:
		o.status("no ongoing order to cancel")
		return nil
	case machine.StateOrdering:
		o.reset(PhaseCancelled)
		o.status("order cancelled, basket cleared")
		return nil
	case machine.StatePaying:
		balance := o.balance
		if balance > 0 {
			if err := o.payOut(balance); err != nil {
				return err
			}
		}
		o.tele.Transaction(o.transaction(balance, true, 0))
		o.reset(PhaseCancelled)
		o.status("order cancelled, balance %s refunded", balance.Format100I())
		return nil
	default:
		return o.fail(errors.Annotatef(machine.ErrInvalidStateTransition, "cancel in state=%s", o.m.State()))
	}
}

// payOut runs the change-making algorithm for amount. An unresolved
// change failure is the one unrecoverable fault: the machine goes Idle
// then straight to Maintenance and the residual is reported for the
// operator.
func (o *Order) payOut(amount currency.Amount) error {
	if err := o.m.ChangeState(machine.StateRefunding); err != nil {
		return o.fail(err)
	}
	dispensed, err := o.m.DispenseChange(amount)
	if err != nil {
		var residual currency.Amount
		var uce *money.UnresolvedChangeError
		if stderrors.As(err, &uce) {
			residual = uce.Residual
		}
		_ = o.m.ChangeState(machine.StateIdle)
		_ = o.m.ChangeState(machine.StateMaintenance)
		o.phase = PhaseCancelled
		o.tele.Error(err)
		o.tele.Transaction(o.transaction(amount-residual, true, residual))
		return o.fail(errors.Annotatef(err, "call a maintenance technician, residual=%s", residual.Format100I()))
	}
	o.log.Debugf("order payout=%s coins=%s", amount.Format100I(), dispensed.String())
	return nil
}

func (o *Order) transaction(change currency.Amount, aborted bool, residual currency.Amount) *tele.Transaction {
	items := make(map[string]uint32, len(o.basket))
	for _, line := range o.basket {
		items[line.item.Name] = line.qty
	}
	return &tele.Transaction{
		Session:  o.id,
		Items:    items,
		Price:    o.price,
		Paid:     o.balance,
		Change:   change,
		Aborted:  aborted,
		Residual: residual,
	}
}

// reset clears the basket and balances and returns the machine to Idle.
func (o *Order) reset(final OrderPhase) {
	o.basket = make(map[uint32]*basketLine)
	o.due = 0
	o.balance = 0
	o.price = 0
	o.phase = final
	_ = o.m.ChangeState(machine.StateIdle)
}

func (o *Order) sortedBasketIDs() []uint32 {
	ids := make([]uint32, 0, len(o.basket))
	for id := range o.basket {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
