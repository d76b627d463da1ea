package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
)

// keyAction is a console binding that injects a phone keycode.
type keyAction struct {
	binding key.Binding
	keycode int
	name    string
}

// consoleKeyMap defines key bindings for the console
type consoleKeyMap struct {
	actions  []keyAction
	Keyframe key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyAction(keycode int, name, helpKey string, keys ...string) keyAction {
	return keyAction{
		binding: key.NewBinding(key.WithKeys(keys...), key.WithHelp(helpKey, name)),
		keycode: keycode,
		name:    name,
	}
}

func newConsoleKeyMap() consoleKeyMap {
	return consoleKeyMap{
		actions: []keyAction{
			newKeyAction(protocol.KeycodeDpadUp, "up", "↑", "up"),
			newKeyAction(protocol.KeycodeDpadDown, "down", "↓", "down"),
			newKeyAction(protocol.KeycodeDpadLeft, "left", "←", "left"),
			newKeyAction(protocol.KeycodeDpadRight, "right", "→", "right"),
			newKeyAction(protocol.KeycodeDpadCenter, "select", "enter", "enter"),
			newKeyAction(protocol.KeycodeBack, "back", "esc", "esc", "backspace"),
			newKeyAction(protocol.KeycodeHome, "home", "h", "h"),
			newKeyAction(protocol.KeycodeSoftLeft, "rotate left", ",", ","),
			newKeyAction(protocol.KeycodeSoftRight, "rotate right", ".", "."),
			newKeyAction(protocol.KeycodeMediaPlayPause, "play/pause", "space", " ", "space"),
			newKeyAction(protocol.KeycodeMediaPrevious, "previous", "[", "["),
			newKeyAction(protocol.KeycodeMediaNext, "next", "]", "]"),
			newKeyAction(protocol.KeycodeVoiceAssist, "voice", "v", "v"),
			newKeyAction(protocol.KeycodeNavigation, "navigation", "m", "m"),
			newKeyAction(protocol.KeycodeTelephone, "phone", "p", "p"),
			newKeyAction(protocol.KeycodeGuide, "guide", "g", "g"),
			newKeyAction(protocol.KeycodeN, "night", "n", "n"),
		},
		Keyframe: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "keyframe"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// action returns the keycode action bound to msg, if any.
func (k consoleKeyMap) action(msg tea.KeyMsg) (keyAction, bool) {
	for _, a := range k.actions {
		if key.Matches(msg, a.binding) {
			return a, true
		}
	}
	return keyAction{}, false
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.actions[0].binding, k.actions[4].binding, k.actions[5].binding, k.actions[6].binding,
		k.Help, k.Quit,
	}
}

// FullHelp returns keybindings for the expanded help view
func (k consoleKeyMap) FullHelp() [][]key.Binding {
	var navigation, media []key.Binding
	for i, action := range k.actions {
		if i < 9 {
			navigation = append(navigation, action.binding)
		} else {
			media = append(media, action.binding)
		}
	}
	return [][]key.Binding{navigation, media, {k.Keyframe, k.Help, k.Quit}}
}
