package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/inventory"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/internal/money"
	"github.com/vendtech/vendcore/log2"
)

func bareMachine(t *testing.T, caps map[currency.Nominal]uint) *machine.Machine {
	m, err := machine.New(log2.NewTest(t, log2.LDebug), machine.Spec{
		SlotCount:      2,
		SlotSize:       10,
		CoinCapacities: caps,
	})
	require.NoError(t, err)
	return m
}

func TestMaintenanceStartStop(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)

	require.NoError(t, ms.Start())
	assert.Equal(t, machine.StateMaintenance, ms.State())

	ms.Stop()
	assert.Equal(t, machine.StateIdle, ms.State())
}

func TestMaintenanceStartBlockedByCustomer(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	require.NoError(t, m.ChangeState(machine.StateOrdering))

	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	err := ms.Start()
	require.ErrorIs(t, err, machine.ErrInvalidStateTransition)
	assert.Equal(t, machine.StateOrdering, m.State())
}

// Stop is the recovery path: it works from any state, not just
// Maintenance.
func TestMaintenanceStopRecoversStuckState(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	require.NoError(t, m.ChangeState(machine.StateRefunding))

	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	ms.Stop()
	assert.Equal(t, machine.StateIdle, m.State())
}

func TestDepositCoinsPartialOnCapacity(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, map[currency.Nominal]uint{50: 50, 100: 50})
	f := &feed{}
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, f.notify)
	require.NoError(t, ms.Start())

	// 51 into capacity 50: 50 land, the 51st fails and names itself
	err := ms.DepositCoins(50, 51)
	require.ErrorIs(t, err, money.ErrCashboxFull)
	assert.ErrorContains(t, err, "unit=51 of 51")

	counts, err := ms.ViewCoins()
	require.NoError(t, err)
	assert.Equal(t, uint(50), counts.InTube(50))
	assert.Equal(t, 1, f.errorCount())
}

func TestWithdrawCoinsPartialOnEmpty(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())
	require.NoError(t, ms.DepositCoins(20, 3))

	err := ms.WithdrawCoins(20, 5)
	require.ErrorIs(t, err, money.ErrCashboxEmpty)
	assert.ErrorContains(t, err, "unit=4 of 5")

	counts, err := ms.ViewCoins()
	require.NoError(t, err)
	assert.Equal(t, uint(0), counts.InTube(20))
}

func TestDepositCoinsUnknownNominal(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())

	err := ms.DepositCoins(3, 2)
	require.ErrorIs(t, err, currency.ErrNominalInvalid)
	assert.ErrorContains(t, err, "unit=1 of 2")
}

func TestStockItemsPartialOnFullSlot(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())

	crisps, err := catalog.NewSnack("crisps", 2, 80, 25)
	require.NoError(t, err)
	require.NoError(t, ms.AssignSlot(1, crisps))

	// slot size is 10: unit 11 overflows, 10 stay
	err = ms.StockItems(1, 11)
	require.ErrorIs(t, err, inventory.ErrSlotFull)
	assert.ErrorContains(t, err, "unit=11 of 11")

	slots, err := ms.ViewItems()
	require.NoError(t, err)
	assert.Equal(t, uint32(10), slots[1].Stock())
}

func TestStockItemsUnassignedSlot(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())

	err := ms.StockItems(0, 3)
	require.ErrorIs(t, err, inventory.ErrSlotUnassigned)
	assert.ErrorContains(t, err, "unit=1 of 3")
}

func TestRemoveItemsPartialOnEmpty(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())

	cola, err := catalog.NewDrink("cola", 1, 150, 330)
	require.NoError(t, err)
	require.NoError(t, ms.AssignSlot(0, cola))
	require.NoError(t, ms.StockItems(0, 2))

	err = ms.RemoveItems(0, 4)
	require.ErrorIs(t, err, inventory.ErrSlotEmpty)
	assert.ErrorContains(t, err, "unit=3 of 4")

	slots, err := ms.ViewItems()
	require.NoError(t, err)
	assert.True(t, slots[0].Empty())
}

func TestUnassignSlotRequiresEmpty(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)
	require.NoError(t, ms.Start())

	cola, err := catalog.NewDrink("cola", 1, 150, 330)
	require.NoError(t, err)
	require.NoError(t, ms.AssignSlot(0, cola))
	require.NoError(t, ms.StockItems(0, 1))

	require.ErrorIs(t, ms.UnassignSlot(0), inventory.ErrSlotNotEmpty)

	require.NoError(t, ms.RemoveItems(0, 1))
	require.NoError(t, ms.UnassignSlot(0))

	slots, err := ms.ViewItems()
	require.NoError(t, err)
	assert.Nil(t, slots[0])
}

func TestBulkOpsRequireMaintenance(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, gbpCaps)
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)

	// session never started: machine is Idle
	require.ErrorIs(t, ms.DepositCoins(50, 1), machine.ErrInvalidStateTransition)
	require.ErrorIs(t, ms.StockItems(0, 1), machine.ErrInvalidStateTransition)
	_, err := ms.ViewCoins()
	require.ErrorIs(t, err, machine.ErrInvalidStateTransition)
}

func TestViewCapacitiesAlwaysVisible(t *testing.T) {
	t.Parallel()

	m := bareMachine(t, map[currency.Nominal]uint{100: 30, 200: 20})
	ms := NewMaintenance(log2.NewTest(t, log2.LDebug), m, nil, nil)

	caps := ms.ViewCapacities()
	assert.Equal(t, uint(30), caps.InTube(100))
	assert.Equal(t, uint(20), caps.InTube(200))
}
