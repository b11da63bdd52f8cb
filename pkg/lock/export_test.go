package lock

import "time"

func SetClock(l *LocalLocker, now func() time.Time) {
	l.now = now
}
