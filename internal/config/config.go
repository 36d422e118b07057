// Package config reads the machine definition from HCL. One file
// describes the physical spec (slots, coin capacities), the item
// catalog and the optional telemetry transport.
package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/internal/catalog"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/log2"
	"github.com/vendtech/vendcore/tele"
)

type MachineBlock struct {
	Slots    int    `hcl:"slots"`
	SlotSize uint32 `hcl:"slot_size"`
}

type CoinBlock struct {
	// Value is the coin denomination as a decimal string, "0.50".
	Value    string `hcl:"value,label"`
	Capacity uint   `hcl:"capacity"`
}

type ItemBlock struct {
	Kind string `hcl:"kind,label"`
	Name string `hcl:"name,label"`

	ID    uint32 `hcl:"id"`
	Price string `hcl:"price"`

	Volume      uint32 `hcl:"volume,optional"`
	Weight      uint32 `hcl:"weight,optional"`
	Description string `hcl:"description,optional"`
}

type Config struct {
	Machine MachineBlock `hcl:"machine,block"`
	Coins   []CoinBlock  `hcl:"coin,block"`
	Items   []ItemBlock  `hcl:"item,block"`
	Tele    *tele.Config `hcl:"tele,block"`
}

func ReadFile(log *log2.Log, path string) (*Config, error) {
	c := &Config{}
	if err := hclsimple.DecodeFile(path, nil, c); err != nil {
		return nil, errors.Annotatef(err, "config=%s", path)
	}
	log.Debugf("config loaded file=%s coins=%d items=%d", path, len(c.Coins), len(c.Items))
	return c, nil
}

func Parse(log *log2.Log, name string, src []byte) (*Config, error) {
	c := &Config{}
	if err := hclsimple.Decode(name, src, nil, c); err != nil {
		return nil, errors.Annotatef(err, "config=%s", name)
	}
	log.Debugf("config loaded file=%s coins=%d items=%d", name, len(c.Coins), len(c.Items))
	return c, nil
}

// MachineSpec converts the machine and coin blocks. Validation of the
// resulting values belongs to machine.New.
func (c *Config) MachineSpec() (machine.Spec, error) {
	caps := make(map[currency.Nominal]uint, len(c.Coins))
	for _, cb := range c.Coins {
		value, err := currency.ParsePrice(cb.Value)
		if err != nil {
			return machine.Spec{}, errors.Annotatef(err, "coin=%q", cb.Value)
		}
		if _, dup := caps[currency.Nominal(value)]; dup {
			return machine.Spec{}, errors.Errorf("coin=%q declared twice", cb.Value)
		}
		caps[currency.Nominal(value)] = cb.Capacity
	}
	return machine.Spec{
		SlotCount:      c.Machine.Slots,
		SlotSize:       c.Machine.SlotSize,
		CoinCapacities: caps,
	}, nil
}

// Catalog builds the item definitions through the validating
// constructors. Item ids must be unique within the config; the
// inventory itself allows one item in several slots.
func (c *Config) Catalog() ([]catalog.Item, error) {
	items := make([]catalog.Item, 0, len(c.Items))
	seen := make(map[uint32]string, len(c.Items))
	for _, ib := range c.Items {
		price, err := currency.ParsePrice(ib.Price)
		if err != nil {
			return nil, errors.Annotatef(err, "item=%s", ib.Name)
		}
		var item catalog.Item
		switch ib.Kind {
		case "drink":
			item, err = catalog.NewDrink(ib.Name, ib.ID, price, ib.Volume)
		case "snack":
			item, err = catalog.NewSnack(ib.Name, ib.ID, price, ib.Weight)
		case "misc":
			item, err = catalog.NewMisc(ib.Name, ib.ID, price, ib.Description)
		default:
			err = errors.Errorf("unknown item kind=%q", ib.Kind)
		}
		if err != nil {
			return nil, errors.Annotatef(err, "item=%s", ib.Name)
		}
		if prev, dup := seen[ib.ID]; dup {
			return nil, errors.Errorf("item=%s id=%d already used by %s", ib.Name, ib.ID, prev)
		}
		seen[ib.ID] = ib.Name
		items = append(items, item)
	}
	return items, nil
}
