// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package goroutinedump

// Status is the scheduler state printed in brackets after a
// goroutine's ID in a runtime stack dump, without the wait duration or
// thread-lock annotations.
type Status string

// Statuses the runtime prints for user goroutines.
const (
	StatusRunning   Status = "running"
	StatusRunnable  Status = "runnable"
	StatusSyscall   Status = "syscall"
	StatusWaiting   Status = "waiting"
	StatusSleep     Status = "sleep"
	StatusSelect    Status = "select"
	StatusChanRecv  Status = "chan receive"
	StatusChanSend  Status = "chan send"
	StatusIOWait    Status = "IO wait"
	StatusSemaphore Status = "semacquire"
)

// KnownStatuses is the status vocabulary of the Go runtime's
// traceback (runtime.waitReasonStrings plus the goroutine states).
// Statuses outside this list still parse; Known reports false for
// them.
var KnownStatuses = []Status{
	StatusRunning,
	StatusRunnable,
	StatusSyscall,
	StatusWaiting,
	StatusSleep,
	StatusSelect,
	StatusChanRecv,
	StatusChanSend,
	StatusIOWait,
	StatusSemaphore,
	"idle",
	"dead",
	"copystack",
	"preempted",
	"GC assist marking",
	"GC assist wait",
	"GC sweep wait",
	"GC scavenge wait",
	"GC weak to strong wait",
	"GC worker (idle)",
	"GC worker (active)",
	"force gc (idle)",
	"finalizer wait",
	"cleanup wait",
	"garbage collection",
	"garbage collection scan",
	"dumping heap",
	"panicwait",
	"select (no cases)",
	"chan receive (nil chan)",
	"chan send (nil chan)",
	"sync.Cond.Wait",
	"sync.Mutex.Lock",
	"sync.RWMutex.Lock",
	"sync.RWMutex.RLock",
	"sync.WaitGroup.Wait",
	"trace reader (blocked)",
	"wait for GC cycle",
	"debug call",
	"stopping the world",
	"flushing proc caches",
	"trace goroutine status",
	"trace proc status",
	"page trace flush",
	"coroutine",
	"forEachP",
	"timer goroutine (idle)",
}

var knownStatusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(KnownStatuses))
	for _, status := range KnownStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Known reports whether s is in KnownStatuses.
func (s Status) Known() bool {
	_, ok := knownStatusSet[s]
	return ok
}
