package viewstate

// Dialog tracks whether a dialog is open.
type Dialog struct {
	*Store[bool]
}

func NewDialog() *Dialog {
	return &Dialog{Store: NewStore(false)}
}

func (d *Dialog) Open() {
	d.Set(true)
}

func (d *Dialog) Close() {
	d.Set(false)
}

func (d *Dialog) IsOpen() bool {
	return d.Get()
}
