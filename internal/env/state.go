// Package env - среда эпизода: разметка страницы, исполнение действий по
// номерам элементов и цикл наблюдение -> действие -> наблюдение.
package env

import (
	"errors"
	"sync"
)

var ErrAlreadyFinished = errors.New("эпизод уже завершен")

type Status int

const (
	StatusInProgress Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State - сквозное состояние эпизода. Флаг завершения меняет только
// Finish, счетчик циклов - только контроллер цикла.
type State struct {
	mu     sync.Mutex
	status Status
	output any
	cycle  int
	log    []string
}

func NewState() *State {
	return &State{}
}

// Finish выставляет итог эпизода. Повторный вызов отклоняется.
func (s *State) Finish(succeeded bool, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrAlreadyFinished
	}
	if succeeded {
		s.status = StatusSucceeded
	} else {
		s.status = StatusFailed
	}
	s.output = output
	return nil
}

// Fail завершает эпизод неуспехом, если он еще не завершен.
func (s *State) Fail(output any) {
	_ = s.Finish(false, output)
}

func (s *State) AppendLog(line string) {
	if line == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, line)
}

func (s *State) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

func (s *State) nextCycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle++
	return s.cycle
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status: s.status,
		Output: s.output,
		Cycle:  s.cycle,
		Log:    append([]string(nil), s.log...),
	}
}

// Snapshot - копия состояния на момент наблюдения.
type Snapshot struct {
	Status Status
	Output any
	Cycle  int
	Log    []string
}

func (s Snapshot) Done() bool {
	return s.Status != StatusInProgress
}
