// Package logging configures log/slog for docindex.
//
// Commands log JSON records through a size-rotating file writer under
// ~/.docindex/logs. With --debug the same records are teed to stderr.
// The MCP server never writes logs to stdout or stderr because stdout
// carries the JSON-RPC stream.
package logging
