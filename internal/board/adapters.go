package board

import (
	"github.com/solenoidlabs/fray/internal/fiber"
)

// fiberSpawner adapts the scheduler to the bus's spawn contract, naming
// listener fibers for diagnostics.
type fiberSpawner struct {
	sched *fiber.Scheduler
}

func (s fiberSpawner) Spawn(fn func()) error {
	_, err := s.sched.SpawnFunc(fn, fiber.WithName("listener"))
	return err
}
