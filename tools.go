//go:build tools
// +build tools

// Package tools pins the tools invoked through go generate (mockgen)
// so go.mod and go.sum track them.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
