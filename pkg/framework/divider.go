package framework

// Divider derives a slower tick from the loop tick. It fires on the
// first call and then once every Ratio calls.
type Divider struct {
	Ratio uint64

	count uint64
}

// NewDivider creates a Divider.
func NewDivider(ratio uint64) *Divider {
	return &Divider{Ratio: ratio}
}

// Tick advances the divider by one base tick and reports whether the
// derived tick fires.
func (d *Divider) Tick() bool {
	fire := d.count == 0
	if d.count++; d.count >= d.Ratio {
		d.count = 0
	}
	return fire
}

// Reset re-aligns the divider so the next call fires.
func (d *Divider) Reset() {
	d.count = 0
}
