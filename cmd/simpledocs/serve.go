package main

// Run executes the serve command.
func (c *ServeCmd) Run(deps *Dependencies) error {
	return deps.Serve(deps.Ctx)
}

// Run executes the mcp command.
func (c *MCPCmd) Run(deps *Dependencies) error {
	return deps.MCP(deps.Ctx)
}
