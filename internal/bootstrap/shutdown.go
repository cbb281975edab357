package bootstrap

import (
	"errors"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

// Shutdown stops intake first, then timers and loops, then drains the audit
// queue before closing the store.
func Shutdown(c *Components) error {
	logging.Info("Starting graceful shutdown...")
	var errs []error

	if c.Session != nil {
		logging.Info("Closing gateway session...")
		if err := c.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.TempGrants != nil {
		logging.Info("Cancelling %d pending temp roles...", c.TempGrants.Pending())
		c.TempGrants.Stop()
	}
	if c.Quarantine != nil {
		c.Quarantine.Stop()
	}
	if c.Tracker != nil {
		c.Tracker.Stop()
	}
	if c.Watchdog != nil {
		logging.Info("Stopping watchdog...")
		c.Watchdog.Stop()
	}

	if c.Audit != nil {
		logging.Info("Draining audit queue...")
		c.Audit.Stop()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	logging.Info("Graceful shutdown complete")
	return errors.Join(errs...)
}
