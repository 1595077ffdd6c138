package imports

import (
	// Tools register themselves with the registry in init()
	_ "github.com/sammcj/mcp-base64/internal/tools/base64conv"
	_ "github.com/sammcj/mcp-base64/internal/tools/utilities/toolhelp"
)
