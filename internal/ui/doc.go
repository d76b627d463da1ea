// Package ui provides the terminal surfaces of the headunit CLI.
//
// Console is a Bubble Tea program that shows one running session: its
// state, the inbound and outbound counters and the media counters, polled
// every RefreshInterval. Keys typed into the console are injected into the
// session as phone keycodes, so a bench setup can drive the projected UI
// without a touch screen.
//
// Header, Result and Printer render the non-interactive output of the other
// commands with Lipgloss. GetTerminalWidth and IsTerminal use x/term to size
// output and to decide whether the console can run at all.
//
// # Usage Pattern
//
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	reason := ui.RunConsole(sess, "Head unit console", "headunit console", map[string]string{
//	    "Phone": addr,
//	})
//
// # Color Palette
//
//   - Primary (#7D56F4): Headers, borders, section titles
//   - Success (#43BF6D): Running sessions, success results
//   - Error (#FF5555): Closed sessions, failures
//   - Warning (#FFA500): Connecting and stopping sessions
//   - Muted (#626262): Labels, help
package ui
