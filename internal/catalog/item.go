// Package catalog holds the immutable item definitions a machine sells.
// Items are validated once at creation and never mutated; slots own the
// only references to them.
package catalog

import (
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/vendtech/vendcore/currency"
)

type Kind uint8

const (
	KindMisc Kind = iota
	KindDrink
	KindSnack
)

func (k Kind) String() string {
	switch k {
	case KindDrink:
		return "drink"
	case KindSnack:
		return "snack"
	default:
		return "miscellaneous item"
	}
}

const maxNameLen = 30

// Item is one sellable product. Kind selects which extra field is
// meaningful: Volume (ml) for drinks, Weight (g) for snacks, Description
// for everything else.
type Item struct {
	Name  string
	ID    uint32
	Price currency.Amount
	Kind  Kind

	Volume      uint32
	Weight      uint32
	Description string
}

func validateCommon(name string, id uint32) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("item name cannot be blank")
	}
	if len(name) > maxNameLen {
		return errors.Errorf("item name=%q longer than %d characters", name, maxNameLen)
	}
	if id == 0 {
		return errors.New("item id must be positive")
	}
	return nil
}

func NewDrink(name string, id uint32, price currency.Amount, volume uint32) (Item, error) {
	if err := validateCommon(name, id); err != nil {
		return Item{}, err
	}
	if volume == 0 {
		return Item{}, errors.Errorf("drink=%s volume must be positive", name)
	}
	return Item{Name: name, ID: id, Price: price, Kind: KindDrink, Volume: volume}, nil
}

func NewSnack(name string, id uint32, price currency.Amount, weight uint32) (Item, error) {
	if err := validateCommon(name, id); err != nil {
		return Item{}, err
	}
	if weight == 0 {
		return Item{}, errors.Errorf("snack=%s weight must be positive", name)
	}
	return Item{Name: name, ID: id, Price: price, Kind: KindSnack, Weight: weight}, nil
}

// NewMisc accepts any description, empty included.
func NewMisc(name string, id uint32, price currency.Amount, description string) (Item, error) {
	if err := validateCommon(name, id); err != nil {
		return Item{}, err
	}
	return Item{Name: name, ID: id, Price: price, Kind: KindMisc, Description: description}, nil
}

func (i Item) String() string {
	extra := ""
	switch i.Kind {
	case KindDrink:
		extra = fmt.Sprintf(" volume=%dml", i.Volume)
	case KindSnack:
		extra = fmt.Sprintf(" weight=%dg", i.Weight)
	default:
		if i.Description != "" {
			extra = " " + i.Description
		}
	}
	return fmt.Sprintf("%s #%d (%s) price=%s%s", i.Name, i.ID, i.Kind, i.Price.Format100I(), extra)
}
