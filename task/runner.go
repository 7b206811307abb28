// Package task runs one long action at a time in the background.
package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/giwty/x360-tu-manager/db"
	"go.uber.org/zap"
)

var ErrBusy = errors.New("another operation is already running, wait for it to finish")

type EventType int

const (
	EVENT_PROGRESS EventType = iota
	EVENT_TRANSFER
	EVENT_DONE
)

// Event reported by a running action. The last event of every action is EVENT_DONE.
type Event struct {
	Type     EventType
	Task     string
	Progress db.ProgressUpdate
	Transfer Transfer
	Result   interface{}
	Err      error
}

// Byte progress of a single file
type Transfer struct {
	Name  string
	Done  int64
	Total int64
}

// Action is the work of a task. It reports progress through the given updater.
type Action func(progress db.ProgressUpdater) (interface{}, error)

// Runner refuses new work while an action is processing
type Runner struct {
	mutex   sync.Mutex
	running string
}

func NewRunner() *Runner {
	return &Runner{}
}

// Running returns the name of the action in flight, "" when idle
func (r *Runner) Running() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.running
}

// Start spawns the action and returns the channel its events are delivered on. The channel
// is closed after the EVENT_DONE event.
func (r *Runner) Start(name string, action Action) (<-chan Event, error) {
	r.mutex.Lock()
	if r.running != "" {
		r.mutex.Unlock()
		zap.S().Warnf("refusing to start %v, %v is processing", name, r.running)
		return nil, ErrBusy
	}
	r.running = name
	r.mutex.Unlock()

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		result, err := r.run(name, action, events)
		r.mutex.Lock()
		r.running = ""
		r.mutex.Unlock()
		events <- Event{Type: EVENT_DONE, Task: name, Result: result, Err: err}
	}()
	return events, nil
}

func (r *Runner) run(name string, action Action, events chan<- Event) (result interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			zap.S().Errorf("unexpected error in %v - %v", name, recovered)
			result = nil
			err = fmt.Errorf("unexpected error in %v: %v", name, recovered)
		}
	}()
	return action(&channelProgress{task: name, events: events})
}

// channelProgress forwards progress updates as events
type channelProgress struct {
	task   string
	events chan<- Event
}

func (c *channelProgress) UpdateProgress(curr int, total int, message string) {
	c.events <- Event{
		Type:     EVENT_PROGRESS,
		Task:     c.task,
		Progress: db.ProgressUpdate{Curr: curr, Total: total, Message: message},
	}
}

func (c *channelProgress) UpdateTransfer(name string, done int64, total int64) {
	c.events <- Event{
		Type:     EVENT_TRANSFER,
		Task:     c.task,
		Transfer: Transfer{Name: name, Done: done, Total: total},
	}
}
