// Package mcp implements a Model Context Protocol client used to reach
// the map tool server. The client speaks JSON-RPC 2.0 over one of two
// transports: a subprocess with newline-delimited messages on
// stdin/stdout, or streamable HTTP. Discovered tools are exposed as
// llm.Tool definitions so the orchestrator can hand them to the model
// unchanged.
//
// Only the client side is implemented; waypoint never acts as an MCP
// server.
package mcp
