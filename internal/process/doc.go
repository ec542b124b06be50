// Package process supervises the out-of-process hardware drivers (camera
// and focuser daemons) the controller talks to over remote events.
//
// A Manager runs one driver: it starts the binary in its own process
// group, forwards its output to the logger, optionally polls a health
// check, and restarts it with exponential backoff after unexpected exits.
// Stop sends SIGTERM to the group and escalates to SIGKILL.
//
// A Supervisor builds managers from the drivers section of the
// configuration and starts, stops and reports on them as a set:
//
//	sup := process.NewSupervisor(cfg.Drivers, log.Component("drivers"))
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
