package application

import (
	"context"

	"wear-voice/internal/domain"
)

type PermissionGate interface {
	Granted(p domain.Permission) bool
	// Request asks the user for p. onResult fires once with the answer,
	// possibly long after Request returns.
	Request(ctx context.Context, p domain.Permission, onResult func(granted bool)) error
}
