package repository

import (
	"rtdb-bridge/internal/rtdb/domain/model"
)

// ChangeNotifier decides when a watched read should be re-run. Implementations
// only signal; the registry performs the read itself, so every notifier yields
// the same snapshot semantics.
type ChangeNotifier interface {
	// Watch calls trigger whenever data at or around path may have changed.
	// trigger never blocks. The returned stop function is idempotent and no
	// trigger call starts after it returns.
	Watch(path model.Path, trigger func()) (stop func(), err error)

	// Close releases shared resources such as connections.
	Close() error
}
