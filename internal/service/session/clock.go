package session

import "time"

// Timer 是可取消的延迟回调。
type Timer interface {
	Stop() bool
}

// Clock 提供当前时间与延迟回调，测试中可替换。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
