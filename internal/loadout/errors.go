package loadout

import (
	"errors"

	"github.com/mwantia/loadoutsync/internal/banktag"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("loadout not found")
	ErrRemoteFailure    = errors.New("remote store failure")
	ErrInvalidLoadout   = errors.New("invalid loadout")

	// ErrFormat is the codec error; banktag.FormatError values match it.
	ErrFormat = banktag.ErrFormat
)
