package assets

import "errors"

// Sentinel errors for asset operations, checkable with errors.Is().
var (
	ErrNotFound      = errors.New("asset not found")
	ErrAlreadyExists = errors.New("asset already indexed")
)
