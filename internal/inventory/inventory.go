// Package inventory is the slot-based item store: a fixed array of
// optional slots, each bound to one item with per-slot stock.
package inventory

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/log2"
)

var (
	ErrSlotRange      = errors.New("slot number out of range")
	ErrSlotAssigned   = errors.New("slot already assigned")
	ErrSlotNotEmpty   = errors.New("slot still holds stock")
	ErrSlotUnassigned = errors.New("slot is not assigned to an item")
	ErrSlotFull       = errors.New("slot is full")
	ErrSlotEmpty      = errors.New("slot is empty")
	ErrItemNotFound   = errors.New("item not found or out of stock")
)

// Slot binds an item to physical storage. A slot with no item cannot
// hold stock; stock moves one unit at a time.
type Slot struct {
	capacity uint32
	item     catalog.Item
	stock    uint32
}

func (s *Slot) Item() catalog.Item { return s.item }
func (s *Slot) Stock() uint32      { return s.stock }
func (s *Slot) Capacity() uint32   { return s.capacity }
func (s *Slot) Empty() bool        { return s.stock == 0 }
func (s *Slot) Full() bool         { return s.stock == s.capacity }

func (s *Slot) String() string {
	return fmt.Sprintf("%s stock=%d/%d", s.item.String(), s.stock, s.capacity)
}

// Inventory is a fixed-length ordered sequence of optional slots. Length
// and per-slot capacity are set at construction and never change.
type Inventory struct {
	log      *log2.Log
	slots    []*Slot
	slotSize uint32
}

func New(log *log2.Log, slotCount int, slotSize uint32) *Inventory {
	return &Inventory{
		log:      log,
		slots:    make([]*Slot, slotCount),
		slotSize: slotSize,
	}
}

func (inv *Inventory) SlotCount() int    { return len(inv.slots) }
func (inv *Inventory) SlotSize() uint32  { return inv.slotSize }

func (inv *Inventory) at(slotNum int) (*Slot, error) {
	if slotNum < 0 || slotNum >= len(inv.slots) {
		return nil, errors.Annotatef(ErrSlotRange, "slot=%d of %d", slotNum, len(inv.slots))
	}
	return inv.slots[slotNum], nil
}

// Assign binds a fresh empty slot to item. Item id uniqueness is not
// checked: a popular item may occupy several slots.
func (inv *Inventory) Assign(slotNum int, item catalog.Item) error {
	slot, err := inv.at(slotNum)
	if err != nil {
		return err
	}
	if slot != nil {
		return errors.Annotatef(ErrSlotAssigned, "slot=%d item=%s", slotNum, slot.item.Name)
	}
	inv.slots[slotNum] = &Slot{capacity: inv.slotSize, item: item}
	inv.log.Debugf("inventory assign slot=%d item=%s", slotNum, item.String())
	return nil
}

// Unassign clears a slot back to the unassigned gap. Stock must be
// drained to zero first.
func (inv *Inventory) Unassign(slotNum int) error {
	slot, err := inv.at(slotNum)
	if err != nil {
		return err
	}
	if slot == nil {
		return errors.Annotatef(ErrSlotUnassigned, "slot=%d", slotNum)
	}
	if !slot.Empty() {
		return errors.Annotatef(ErrSlotNotEmpty, "slot=%d stock=%d", slotNum, slot.stock)
	}
	inv.slots[slotNum] = nil
	inv.log.Debugf("inventory unassign slot=%d", slotNum)
	return nil
}

func (inv *Inventory) Restock(slotNum int) error {
	slot, err := inv.at(slotNum)
	if err != nil {
		return err
	}
	if slot == nil {
		return errors.Annotatef(ErrSlotUnassigned, "slot=%d", slotNum)
	}
	if slot.Full() {
		return errors.Annotatef(ErrSlotFull, "slot=%d capacity=%d", slotNum, slot.capacity)
	}
	slot.stock++
	return nil
}

// RemoveOne takes one unit out of a specific slot, the admin-facing
// counterpart of DispenseByID.
func (inv *Inventory) RemoveOne(slotNum int) error {
	slot, err := inv.at(slotNum)
	if err != nil {
		return err
	}
	if slot == nil {
		return errors.Annotatef(ErrSlotUnassigned, "slot=%d", slotNum)
	}
	if slot.Empty() {
		return errors.Annotatef(ErrSlotEmpty, "slot=%d", slotNum)
	}
	slot.stock--
	return nil
}

// DispenseByID drains the lowest-indexed non-empty slot matching id.
// Iteration order is slot index order, no other tie-break.
func (inv *Inventory) DispenseByID(id uint32) error {
	for i, slot := range inv.slots {
		if slot == nil {
			continue
		}
		if slot.item.ID == id && !slot.Empty() {
			slot.stock--
			inv.log.Debugf("inventory dispense slot=%d item=%s stock=%d", i, slot.item.Name, slot.stock)
			return nil
		}
	}
	return errors.Annotatef(ErrItemNotFound, "id=%d", id)
}

// Snapshot returns the full slot array including unassigned gaps as nil.
// Slot pointers are live; callers only read them.
func (inv *Inventory) Snapshot() []*Slot {
	out := make([]*Slot, len(inv.slots))
	copy(out, inv.slots)
	return out
}

// StockByID sums stock across every slot holding id.
func (inv *Inventory) StockByID(id uint32) (total uint32, item catalog.Item, found bool) {
	for _, slot := range inv.slots {
		if slot == nil || slot.item.ID != id {
			continue
		}
		if !found {
			item = slot.item
			found = true
		}
		total += slot.stock
	}
	return total, item, found
}
