// gemini-planner: MCP planning server backed by the Gemini CLI.
//
// Usage:
//
//	gemini-planner serve            # Start MCP server (stdio transport)
//	gemini-planner check            # Test the Gemini CLI setup
//	gemini-planner view <id>        # Show a stored planning context
//	gemini-planner list             # List stored planning contexts
//	gemini-planner update           # Update to the latest release
package main

import (
	"os"

	"github.com/HendryAvila/gemini-planner/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
