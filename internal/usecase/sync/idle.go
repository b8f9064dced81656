package sync

import (
	"sync"
	"time"
)

// DefaultIdleTimeout — сколько контроллер может молчать, прежде чем управление
// отберут и передадут следующему в очереди.
const DefaultIdleTimeout = 5 * time.Minute

// IdleWatch следит за активностью контроллера. Каждое входящее сообщение
// должно дёргать Touch; если тишина длится дольше таймаута, один раз
// вызывается onIdle.
type IdleWatch struct {
	mu      sync.Mutex
	d       time.Duration
	timer   *time.Timer
	stopped bool
}

// NewIdleWatch запускает слежение. d <= 0 означает таймаут по умолчанию.
func NewIdleWatch(d time.Duration, onIdle func()) *IdleWatch {
	if d <= 0 {
		d = DefaultIdleTimeout
	}
	w := &IdleWatch{d: d}
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		fired := !w.stopped
		w.stopped = true
		w.mu.Unlock()
		if fired {
			onIdle()
		}
	})
	return w
}

// Touch сбрасывает отсчёт тишины.
func (w *IdleWatch) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timer.Reset(w.d)
}

// Stop останавливает слежение. После Stop onIdle гарантированно не вызовется,
// если ещё не успел.
func (w *IdleWatch) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}
