package currency

import (
	"fmt"
	"sort"
	"strings"

	oerr "github.com/juju/errors"
)

// Amount is integer counting lowest currency unit, e.g. 1.20 = 120
type Amount uint32

func (a Amount) Format100I() string { return fmt.Sprintf("%.2f", float64(a)/100) }

// ParsePrice converts a decimal string like "1.50" to Amount.
// Rejects more than 2 digits after the point, the factory contract for item prices.
func ParsePrice(s string) (Amount, error) {
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, oerr.Errorf("price=%s more than 2 decimal digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	total := Amount(0)
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, oerr.Errorf("price=%s is not a valid decimal", s)
			}
			total = total*10 + Amount(c-'0')
		}
	}
	return total, nil
}

// Nominal is value of one coin or bill
type Nominal Amount

func (n Nominal) Format100I() string { return Amount(n).Format100I() }

var (
	ErrNominalInvalid = oerr.New("nominal is not valid for this group")
	ErrNominalCount   = oerr.New("not enough nominals for this amount")
)

// NominalGroup operates money comprised of multiple nominals, like coins or bills.
// coin1 : 3
// coin5 : 1
// coin10: 4
// total : 48
type NominalGroup struct {
	values map[Nominal]uint
}

func (ng *NominalGroup) SetValid(valid []Nominal) {
	ng.values = make(map[Nominal]uint, len(valid))
	for _, n := range valid {
		if n != 0 {
			ng.values[n] = 0
		}
	}
}

func (ng *NominalGroup) Copy() *NominalGroup {
	ng2 := &NominalGroup{
		values: make(map[Nominal]uint, len(ng.values)),
	}
	for k, v := range ng.values {
		ng2.values[k] = v
	}
	return ng2
}

func (ng *NominalGroup) Contains(n Nominal) bool {
	_, ok := ng.values[n]
	return ok
}

func (ng *NominalGroup) Add(n Nominal) error {
	if _, ok := ng.values[n]; !ok {
		return oerr.Annotatef(ErrNominalInvalid, "Add(n=%s)", n.Format100I())
	}
	ng.values[n]++
	return nil
}

func (ng *NominalGroup) Sub(n Nominal) error {
	stored, ok := ng.values[n]
	if !ok {
		return oerr.Annotatef(ErrNominalInvalid, "Sub(n=%s)", n.Format100I())
	}
	if stored == 0 {
		return oerr.Annotatef(ErrNominalCount, "Sub(n=%s)", n.Format100I())
	}
	ng.values[n]--
	return nil
}

// MustAdd just adds count ignoring valid nominals.
func (ng *NominalGroup) MustAdd(n Nominal, count uint) {
	if ng.values == nil {
		ng.values = make(map[Nominal]uint)
	}
	ng.values[n] += count
}

func (ng *NominalGroup) Clear() {
	for n := range ng.values {
		ng.values[n] = 0
	}
}

func (ng *NominalGroup) Get(n Nominal) (uint, error) {
	stored, ok := ng.values[n]
	if !ok {
		return 0, ErrNominalInvalid
	}
	return stored, nil
}

// InTube is Get without the invalid-nominal distinction, 0 for unknown.
func (ng *NominalGroup) InTube(n Nominal) uint { return ng.values[n] }

func (ng *NominalGroup) Iter(f func(nominal Nominal, count uint) error) error {
	for nominal, count := range ng.values {
		if err := f(nominal, count); err != nil {
			return err
		}
	}
	return nil
}

func (ng *NominalGroup) ToMapUint32(m map[uint32]uint32) {
	for nominal, count := range ng.values {
		m[uint32(nominal)] = uint32(count)
	}
}

func (ng *NominalGroup) Total() Amount {
	sum := Amount(0)
	for nominal, count := range ng.values {
		sum += Amount(nominal) * Amount(count)
	}
	return sum
}

// Nominals returns the valid nominal set sorted descending by value,
// the fixed scan order of the change-making loop.
func (ng *NominalGroup) Nominals() []Nominal {
	order := make([]Nominal, 0, len(ng.values))
	for n := range ng.values {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] > order[j] })
	return order
}

func (ng *NominalGroup) String() string {
	parts := make([]string, 0, len(ng.values)+1)
	sum := Amount(0)
	for nominal, count := range ng.values {
		if count > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", nominal.Format100I(), count))
			sum += Amount(nominal) * Amount(count)
		}
	}
	sort.Strings(parts)
	parts = append(parts, fmt.Sprintf("total:%s", sum.Format100I()))
	return strings.Join(parts, ",")
}

// ExpendOneOrdered takes one coin for change: the first nominal in order
// that both fits under max and has stock. order must be descending for
// least-count change. Returns ErrNominalCount after a full fruitless pass.
func (ng *NominalGroup) ExpendOneOrdered(order []Nominal, max Amount) (Nominal, error) {
	if max == 0 {
		return 0, nil
	}
	for _, n := range order {
		if Amount(n) <= max && ng.values[n] > 0 {
			ng.values[n]--
			return n, nil
		}
	}
	return 0, ErrNominalCount
}
