package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/helpers/cli"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/display"
	"github.com/vendtech/vendcore/internal/inventory"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/internal/session"
	"github.com/vendtech/vendcore/tele"
)

// console drives one machine from stdin. Customer and admin commands
// share the prompt; the state machine decides who may act.
type console struct {
	m       *machine.Machine
	items   []catalog.Item
	teler   tele.Teler
	disp    *display.Text
	order   *session.Order
	service *session.Maintenance
}

func runConsole(m *machine.Machine, items []catalog.Item, teler tele.Teler) {
	con := &console{
		m:     m,
		items: items,
		teler: teler,
		disp:  display.NewText(os.Stdout, "| "),
	}
	con.service = session.NewMaintenance(log, m, teler, con.disp.Notify)
	cli.MainLoop(con.exec, con.complete)
}

var suggestions = []prompt.Suggest{
	{Text: "order", Description: "start a new order"},
	{Text: "select", Description: "select <item-id>: add one unit to basket"},
	{Text: "deselect", Description: "deselect <item-id>: remove one unit from basket"},
	{Text: "basket", Description: "show current basket"},
	{Text: "stock", Description: "show aggregate item stock"},
	{Text: "checkout", Description: "total the basket and start paying"},
	{Text: "pay", Description: "pay <coin>: deposit one coin, e.g. pay 0.50"},
	{Text: "cancel", Description: "cancel the current order"},
	{Text: "service", Description: "enter maintenance mode"},
	{Text: "stop", Description: "leave maintenance mode"},
	{Text: "coins", Description: "coin counts (maintenance only)"},
	{Text: "caps", Description: "coin capacities"},
	{Text: "deposit", Description: "deposit <coin> <count>"},
	{Text: "withdraw", Description: "withdraw <coin> <count>"},
	{Text: "load", Description: "load <slot> <count>: stock items"},
	{Text: "unload", Description: "unload <slot> <count>: remove items"},
	{Text: "assign", Description: "assign <slot> <item-id>"},
	{Text: "unassign", Description: "unassign <slot>"},
	{Text: "items", Description: "show slot contents"},
	{Text: "state", Description: "show machine state"},
	{Text: "help", Description: "list commands"},
	{Text: "exit", Description: "quit"},
}

func (con *console) complete(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func (con *console) exec(line string) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}
	cmd, args := words[0], words[1:]
	switch cmd {
	case "exit", "quit":
		os.Exit(0)
	case "state":
		fmt.Printf("state=%s\n", con.m.State())
	case "order":
		con.order = session.NewOrder(log, con.m, con.teler, con.disp.Notify)
		_ = con.order.Start()
	case "select":
		if id, ok := con.argID(args); ok && con.haveOrder() {
			_ = con.order.SelectItem(id)
		}
	case "deselect":
		if id, ok := con.argID(args); ok && con.haveOrder() {
			_ = con.order.DeselectItem(id)
		}
	case "basket":
		if con.haveOrder() {
			con.printBasket()
		}
	case "stock":
		con.printStock()
	case "checkout":
		if con.haveOrder() {
			_ = con.order.Checkout()
		}
	case "pay":
		if n, ok := con.argCoin(args); ok && con.haveOrder() {
			_ = con.order.DepositCoin(n)
		}
	case "cancel":
		if con.haveOrder() {
			_ = con.order.Cancel()
		}
	case "service":
		_ = con.service.Start()
	case "stop":
		con.service.Stop()
	case "coins":
		if counts, err := con.service.ViewCoins(); err == nil {
			fmt.Printf("coins %s\n", counts.String())
		}
	case "caps":
		fmt.Printf("capacities %s\n", con.service.ViewCapacities().String())
	case "deposit":
		if n, count, ok := con.argCoinCount(args); ok {
			_ = con.service.DepositCoins(n, count)
		}
	case "withdraw":
		if n, count, ok := con.argCoinCount(args); ok {
			_ = con.service.WithdrawCoins(n, count)
		}
	case "load":
		if slot, count, ok := con.argSlotCount(args); ok {
			_ = con.service.StockItems(slot, count)
		}
	case "unload":
		if slot, count, ok := con.argSlotCount(args); ok {
			_ = con.service.RemoveItems(slot, count)
		}
	case "assign":
		con.assign(args)
	case "unassign":
		if len(args) == 1 {
			if slot, err := strconv.Atoi(args[0]); err == nil {
				_ = con.service.UnassignSlot(slot)
				return
			}
		}
		fmt.Println("usage: unassign <slot>")
	case "items":
		if slots, err := con.service.ViewItems(); err == nil {
			con.printSlots(slots)
		}
	case "help":
		for _, s := range suggestions {
			fmt.Printf("%-10s %s\n", s.Text, s.Description)
		}
	default:
		fmt.Printf("unknown command %q, try help\n", cmd)
	}
}

func (con *console) haveOrder() bool {
	if con.order == nil {
		fmt.Println("no order session, run: order")
		return false
	}
	return true
}

func (con *console) argID(args []string) (uint32, bool) {
	if len(args) == 1 {
		if id, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			return uint32(id), true
		}
	}
	fmt.Println("usage: <command> <item-id>")
	return 0, false
}

func (con *console) argCoin(args []string) (currency.Nominal, bool) {
	if len(args) == 1 {
		if value, err := currency.ParsePrice(args[0]); err == nil {
			return currency.Nominal(value), true
		}
	}
	fmt.Println("usage: pay <coin>, e.g. pay 0.50")
	return 0, false
}

func (con *console) argCoinCount(args []string) (currency.Nominal, uint, bool) {
	if len(args) == 2 {
		value, err1 := currency.ParsePrice(args[0])
		count, err2 := strconv.ParseUint(args[1], 10, 32)
		if err1 == nil && err2 == nil {
			return currency.Nominal(value), uint(count), true
		}
	}
	fmt.Println("usage: <command> <coin> <count>")
	return 0, 0, false
}

func (con *console) argSlotCount(args []string) (int, uint, bool) {
	if len(args) == 2 {
		slot, err1 := strconv.Atoi(args[0])
		count, err2 := strconv.ParseUint(args[1], 10, 32)
		if err1 == nil && err2 == nil {
			return slot, uint(count), true
		}
	}
	fmt.Println("usage: <command> <slot> <count>")
	return 0, 0, false
}

func (con *console) assign(args []string) {
	if len(args) == 2 {
		slot, err1 := strconv.Atoi(args[0])
		id, err2 := strconv.ParseUint(args[1], 10, 32)
		if err1 == nil && err2 == nil {
			for _, item := range con.items {
				if item.ID == uint32(id) {
					_ = con.service.AssignSlot(slot, item)
					return
				}
			}
			fmt.Printf("item id=%d is not in the catalog\n", id)
			return
		}
	}
	fmt.Println("usage: assign <slot> <item-id>")
}

func (con *console) printBasket() {
	basket := con.order.Basket()
	if len(basket) == 0 {
		fmt.Println("basket is empty")
		return
	}
	total := currency.Amount(0)
	for item, qty := range basket {
		fmt.Printf("%3d x %s\n", qty, item.String())
		total += item.Price * currency.Amount(qty)
	}
	fmt.Printf("total %s\n", total.Format100I())
}

func (con *console) printSlots(slots []*inventory.Slot) {
	for i, slot := range slots {
		if slot == nil {
			fmt.Printf("slot %2d: unassigned\n", i)
			continue
		}
		fmt.Printf("slot %2d: %s\n", i, slot.String())
	}
}

func (con *console) printStock() {
	slots, err := con.m.Slots()
	if err != nil {
		fmt.Printf("stock is visible while ordering or in maintenance: %v\n", err)
		return
	}
	totals := make(map[uint32]uint32)
	names := make(map[uint32]catalog.Item)
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		item := slot.Item()
		totals[item.ID] += slot.Stock()
		names[item.ID] = item
	}
	ids := make([]uint32, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("%3d x %s\n", totals[id], names[id].String())
	}
}
