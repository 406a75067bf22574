package models

// Action is one browser interaction run against the working tab.
type Action struct {
	// Type is one of "wait", "click", "input", "press", "scroll", "execute_js".
	Type string `json:"type" yaml:"type"`

	// Selector targets the element for wait, click, input and press.
	Selector string `json:"selector,omitempty" yaml:"selector"`

	// Milliseconds is the sleep length for a wait without a selector.
	Milliseconds int `json:"milliseconds,omitempty" yaml:"milliseconds"`

	// Text is typed by input actions.
	Text string `json:"text,omitempty" yaml:"text"`

	// Key is the keyboard key sent by press actions, e.g. "Enter".
	Key string `json:"key,omitempty" yaml:"key"`

	// Direction is "up" or "down" for scroll; Amount counts viewports.
	Direction string `json:"direction,omitempty" yaml:"direction"`
	Amount    int    `json:"amount,omitempty" yaml:"amount"`

	// Code is the JavaScript evaluated by execute_js.
	Code string `json:"code,omitempty" yaml:"code"`

	// Gone makes a selector wait succeed once the element disappears.
	Gone bool `json:"gone,omitempty" yaml:"gone"`
}
