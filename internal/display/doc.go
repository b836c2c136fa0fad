// Package display provides the terminal display service used while a child
// process runs: live, in-place updatable items and leveled log output.
//
// # Live Items
//
// An item is a status line identified by a stable key. It is added when a
// run starts, updated in place as output arrives, and removed when the run
// completes:
//
//	term := display.Default()
//	term.AddItem(display.Item{
//	    ID:        "stdout",
//	    Label:     "=== Running make\nstdout",
//	    Color:     color.FgGreen,
//	    Indicator: display.MustIndicator("dot"),
//	})
//	term.UpdateItem("stdout", display.Update{Text: "compiling main.go"})
//	term.RemoveItem("stdout")
//
// Updates and removals for keys that are not active are ignored.
//
// Items are drawn only when the output is a terminal and no CI environment is
// detected. Otherwise item calls are tracked but nothing is drawn, and only
// log output reaches the writer.
//
// # Logging
//
// Log and LogPlain write through logger.ConsoleLogger. Live items are cleared
// before a log line is written and redrawn after it, so log output scrolls
// above the status lines.
//
// # Warnings
//
// Warning renders a highlighted notice with optional details and a suggestion:
//
//	warning := display.Warning{
//	    Title:      "Output truncated",
//	    Message:    "stdout exceeded 5242880 bytes",
//	    Suggestion: "Raise --max-output",
//	}
//	warning.Display(os.Stderr)
package display
