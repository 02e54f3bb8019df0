package instance

import (
	"github.com/denisbrodbeck/machineid"
)

// ID returns a stable, app-scoped identifier for this host so that several
// bot deployments reporting to the same chat or dashboard can be told apart.
// The raw machine id is hashed with the app key and never leaves the box.
func ID() (string, error) {
	return machineid.ProtectedID("webhook-trader")
}
