package tracker

import (
	"sync"
	"time"
)

// debouncedSaver 合并静默期内的多次保存请求为一次写入
// 挂起期间的新请求只刷新计时器，不排队多次写
type debouncedSaver struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending bool
	save    func()
}

func newDebouncedSaver(delay time.Duration, save func()) *debouncedSaver {
	return &debouncedSaver{
		delay: delay,
		save:  save,
	}
}

// Request 请求一次保存，静默期后执行
func (d *debouncedSaver) Request() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
	} else {
		d.timer.Reset(d.delay)
	}
}

func (d *debouncedSaver) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.save()
}

// Flush 若有挂起的保存则立即执行
func (d *debouncedSaver) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	wasPending := d.pending
	d.pending = false
	d.mu.Unlock()

	if wasPending {
		d.save()
	}
}
