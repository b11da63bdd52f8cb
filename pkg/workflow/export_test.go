package workflow

import "time"

func (p *Poller) SetClock(now func() time.Time) {
	p.now = now
}

func (i *Interpreter) SetClock(now func() time.Time) {
	i.now = now
}

func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}
