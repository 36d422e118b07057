package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/internal/money"
	"github.com/vendtech/vendcore/log2"
)

type feed struct {
	events []Event
}

func (f *feed) notify(e Event) { f.events = append(f.events, e) }

func (f *feed) errorCount() int {
	n := 0
	for _, e := range f.events {
		if e.Kind == EventError {
			n++
		}
	}
	return n
}

// testMachine builds a stocked machine: slot 0 holds item id 1 priced
// 1.50 (stock per arg), coin capacities from caps with initial coin
// counts preloaded via maintenance.
func testMachine(t *testing.T, stock int, caps map[currency.Nominal]uint, preload map[currency.Nominal]uint) *machine.Machine {
	lg := log2.NewTest(t, log2.LDebug)
	m, err := machine.New(lg, machine.Spec{SlotCount: 2, SlotSize: 10, CoinCapacities: caps})
	require.NoError(t, err)

	cola, err := catalog.NewDrink("cola", 1, 150, 330)
	require.NoError(t, err)

	require.NoError(t, m.ChangeState(machine.StateMaintenance))
	require.NoError(t, m.AssignSlot(0, cola))
	for i := 0; i < stock; i++ {
		require.NoError(t, m.StockItem(0))
	}
	for n, count := range preload {
		for i := uint(0); i < count; i++ {
			require.NoError(t, m.InsertCoin(n))
		}
	}
	require.NoError(t, m.ChangeState(machine.StateIdle))
	return m
}

var gbpCaps = map[currency.Nominal]uint{
	1: 50, 2: 50, 5: 50, 10: 50, 20: 50, 50: 50, 100: 30, 200: 30,
}

func TestStartRequiresIdle(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	lg := log2.NewTest(t, log2.LDebug)
	f := &feed{}

	o := NewOrder(lg, m, nil, f.notify)
	require.NoError(t, o.Start())
	assert.Equal(t, PhaseSelecting, o.Phase())
	assert.Equal(t, machine.StateOrdering, m.State())

	o2 := NewOrder(lg, m, nil, f.notify)
	err := o2.Start()
	require.ErrorIs(t, err, ErrOrderInProgress)
}

func TestStartBlockedByMaintenance(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	require.NoError(t, m.ChangeState(machine.StateMaintenance))

	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	err := o.Start()
	require.ErrorIs(t, err, ErrUnderMaintenance)
}

func TestSelectDeselectRestoresBasket(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 3, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())

	require.NoError(t, o.SelectItem(1))
	before := o.Basket()
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.DeselectItem(1))
	assert.Equal(t, before, o.Basket())

	require.NoError(t, o.DeselectItem(1))
	assert.Empty(t, o.Basket())

	err := o.DeselectItem(1)
	require.ErrorIs(t, err, ErrItemUnavailable)
}

func TestSelectBoundedByStock(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())

	require.NoError(t, o.SelectItem(1))
	before := o.Basket()
	err := o.SelectItem(1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, before, o.Basket(), "basket untouched on rejected select")

	err = o.SelectItem(9)
	require.ErrorIs(t, err, ErrItemUnavailable)
}

func TestCheckoutEmptyBasket(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())

	err := o.Checkout()
	require.ErrorIs(t, err, ErrBasketEmpty)
	assert.Equal(t, machine.StateOrdering, m.State())
}

// exact payment: due reaches 0, item dispensed, zero change, Idle
func TestExactPayment(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 2, gbpCaps, nil)
	f := &feed{}
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, f.notify)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.Checkout())
	assert.Equal(t, int64(150), o.AmountDue())
	assert.Equal(t, machine.StatePaying, m.State())

	require.NoError(t, o.DepositCoin(100))
	assert.Equal(t, int64(50), o.AmountDue())
	require.NoError(t, o.DepositCoin(50))

	assert.Equal(t, PhaseFulfilled, o.Phase())
	assert.Equal(t, machine.StateIdle, m.State())
	assert.Zero(t, f.errorCount())

	// item came out of slot 0
	require.NoError(t, m.ChangeState(machine.StateMaintenance))
	slots, err := m.Slots()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), slots[0].Stock())
}

// the spec scenario: price 1.50, deposit 2.00, change 0.50 in one coin
func TestOverpaymentChange(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 2, gbpCaps, map[currency.Nominal]uint{50: 5, 20: 5, 10: 5})
	f := &feed{}
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, f.notify)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.Checkout())

	require.NoError(t, o.DepositCoin(200))

	assert.Equal(t, PhaseFulfilled, o.Phase())
	assert.Equal(t, machine.StateIdle, m.State())
	assert.Zero(t, f.errorCount())

	// one 0.50 left the box: preload 5x50+5x20+5x10 = 4.00, plus 2.00
	// deposited, minus 0.50 change
	require.NoError(t, m.ChangeState(machine.StateMaintenance))
	counts, err := m.CoinCounts()
	require.NoError(t, err)
	assert.Equal(t, uint(4), counts.InTube(50))
	assert.Equal(t, uint(1), counts.InTube(200))
	assert.Equal(t, currency.Amount(550), counts.Total())
}

func TestZeroTotalCheckoutSettles(t *testing.T) {
	t.Parallel()

	lg := log2.NewTest(t, log2.LDebug)
	m, err := machine.New(lg, machine.Spec{SlotCount: 2, SlotSize: 10, CoinCapacities: gbpCaps})
	require.NoError(t, err)
	free, err := catalog.NewMisc("napkins", 7, 0, "")
	require.NoError(t, err)
	require.NoError(t, m.ChangeState(machine.StateMaintenance))
	require.NoError(t, m.AssignSlot(0, free))
	require.NoError(t, m.StockItem(0))
	require.NoError(t, m.ChangeState(machine.StateIdle))

	o := NewOrder(lg, m, nil, nil)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(7))
	require.NoError(t, o.Checkout())

	assert.Equal(t, PhaseFulfilled, o.Phase())
	assert.Equal(t, machine.StateIdle, m.State())
}

func TestDepositErrorLeavesSessionPaying(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.Checkout())

	// 0.03 is not a GBP coin: cashbox error passes through unchanged
	err := o.DepositCoin(3)
	require.ErrorIs(t, err, currency.ErrNominalInvalid)
	assert.Equal(t, int64(150), o.AmountDue())
	assert.Equal(t, machine.StatePaying, m.State())

	// corrected retry works
	require.NoError(t, o.DepositCoin(100))
	assert.Equal(t, int64(50), o.AmountDue())
}

func TestCancelWhileOrdering(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))

	require.NoError(t, o.Cancel())
	assert.Equal(t, PhaseCancelled, o.Phase())
	assert.Equal(t, machine.StateIdle, m.State())
	assert.Empty(t, o.Basket())
}

func TestCancelWhilePayingRefundsBalance(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.Checkout())
	require.NoError(t, o.DepositCoin(100))

	require.NoError(t, o.Cancel())
	assert.Equal(t, PhaseCancelled, o.Phase())
	assert.Equal(t, machine.StateIdle, m.State())
	assert.Equal(t, currency.Amount(0), o.Balance())

	// the deposited coin went back out
	require.NoError(t, m.ChangeState(machine.StateMaintenance))
	counts, err := m.CoinCounts()
	require.NoError(t, err)
	assert.Equal(t, currency.Amount(0), counts.Total())
}

func TestCancelWithNothingOngoing(t *testing.T) {
	t.Parallel()

	m := testMachine(t, 1, gbpCaps, nil)
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, o.Cancel())
	assert.Equal(t, machine.StateIdle, m.State())
}

// refund that cannot be decomposed: the one unrecoverable path, machine
// parks in Maintenance with the residual reported
func TestUnresolvedChangeGoesToMaintenance(t *testing.T) {
	t.Parallel()

	// only 2.00 coins accepted: change 0.50 is indecomposable
	m := testMachine(t, 2, map[currency.Nominal]uint{200: 10}, nil)
	f := &feed{}
	o := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, f.notify)
	require.NoError(t, o.Start())
	require.NoError(t, o.SelectItem(1))
	require.NoError(t, o.Checkout())

	err := o.DepositCoin(200)
	require.Error(t, err)
	uce := &money.UnresolvedChangeError{}
	require.ErrorAs(t, err, &uce)
	assert.Equal(t, currency.Amount(50), uce.Residual)

	assert.Equal(t, machine.StateMaintenance, m.State())
	assert.Equal(t, PhaseCancelled, o.Phase())

	// no customer action possible until an operator intervenes
	o2 := NewOrder(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.ErrorIs(t, o2.Start(), ErrUnderMaintenance)
}
