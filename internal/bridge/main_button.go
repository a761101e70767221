package bridge

import "sync"

const (
	DefaultButtonColor     = "#2481cc"
	DefaultButtonTextColor = "#ffffff"
)

// MainButton mirrors the host's bottom action button. It holds at most one
// click callback.
type MainButton struct {
	mu        sync.Mutex
	text      string
	color     string
	textColor string
	visible   bool
	active    bool
	onClick   func()
}

func NewMainButton() *MainButton {
	return &MainButton{
		color:     DefaultButtonColor,
		textColor: DefaultButtonTextColor,
		active:    true,
	}
}

// ButtonState is a copy of the button descriptor for rendering.
type ButtonState struct {
	Text      string
	Color     string
	TextColor string
	Visible   bool
	Active    bool
}

func (b *MainButton) State() ButtonState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ButtonState{
		Text:      b.text,
		Color:     b.color,
		TextColor: b.textColor,
		Visible:   b.visible,
		Active:    b.active,
	}
}

func (b *MainButton) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

func (b *MainButton) SetColors(color, textColor string) {
	b.mu.Lock()
	if color != "" {
		b.color = color
	}
	if textColor != "" {
		b.textColor = textColor
	}
	b.mu.Unlock()
}

func (b *MainButton) Show() { b.setVisible(true) }
func (b *MainButton) Hide() { b.setVisible(false) }

func (b *MainButton) Enable()  { b.setActive(true) }
func (b *MainButton) Disable() { b.setActive(false) }

func (b *MainButton) setVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

func (b *MainButton) setActive(v bool) {
	b.mu.Lock()
	b.active = v
	b.mu.Unlock()
}

// OnClick registers the click callback, replacing any previous one.
func (b *MainButton) OnClick(fn func()) {
	b.mu.Lock()
	b.onClick = fn
	b.mu.Unlock()
}

func (b *MainButton) OffClick() {
	b.OnClick(nil)
}

// Click runs the callback if the button is visible and active. It reports
// whether a callback ran.
func (b *MainButton) Click() bool {
	b.mu.Lock()
	fn := b.onClick
	ok := fn != nil && b.visible && b.active
	b.mu.Unlock()
	if !ok {
		return false
	}
	fn()
	return true
}
