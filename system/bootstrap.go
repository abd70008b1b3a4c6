package system

import (
	"errors"
	"fmt"

	"qmgr/config"
	"qmgr/dispatcher"
	"qmgr/interrupts"
)

/*
	Queue bring-up: configure the simulated queues, then register the
	notification sources with the dispatcher, in that order.
*/

// Boot configures every queue of the configuration and enables its
// notification
func (sys *System) Boot() error {
	for _, q := range sys.cfg.Queues {
		id := q.QueueID()
		if err := sys.Sim.Configure(id, q.Size, q.NearlyEmpty, q.NearlyFull); err != nil {
			return err
		}
	}

	for _, q := range sys.cfg.Queues {
		if err := sys.bootQueue(q); err != nil {
			return err
		}
	}

	// sporadic suppression does not nest
	if len(sys.periodic) > 1 {
		sys.log.Warn().
			Interface("queues", sys.periodic).
			Msg("more than one periodic queue")
	}

	_ = sys.console.WriteConsole(fmt.Sprintf("%d queues configured, %s dispatch loop\n",
		len(sys.cfg.Queues), sys.Dispatcher.Capabilities()))
	return nil
}

func (sys *System) bootQueue(q config.Queue) error {
	id := q.QueueID()
	d := sys.Dispatcher

	src, err := q.SourceID()
	if err != nil {
		return err
	}
	class, err := q.LivelockClass()
	if err != nil {
		return err
	}

	if err := d.SetPriority(id, interrupts.Priority(q.Priority)); err != nil {
		return err
	}
	if err := d.SetCallback(id, sys.drain, class); err != nil {
		return err
	}
	if id.Group() == interrupts.LowGroup {
		if err := d.SetLivelockClass(id, class); err != nil {
			return err
		}
		if class == interrupts.Periodic {
			sys.periodic = append(sys.periodic, id)
		}
	}

	err = d.EnableNotification(id, src)
	if errors.Is(err, dispatcher.ErrStatusChanged) {
		sys.log.Warn().Err(err).Int("queue", int(id)).Msg("queue status moved during enable")
		err = nil
	}
	if err != nil {
		return err
	}

	sys.log.Debug().
		Int("queue", int(id)).
		Stringer("group", id.Group()).
		Int("priority", q.Priority).
		Stringer("source", src).
		Stringer("class", class).
		Msg("queue notification enabled")
	return nil
}
