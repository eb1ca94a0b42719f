package vm

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codahale/hdrhistogram"
)

// MethodProfile holds profiling data for a single method.
type MethodProfile struct {
	Bix             uint16
	InvocationCount uint64 // atomic
}

// NativeProfile holds call count and latency for a single native.
type NativeProfile struct {
	Kit, Method int
	Name        string

	mu   sync.Mutex
	hist *hdrhistogram.Histogram // nanoseconds
}

// Profiler counts method invocations and measures native call latency.
// It may be read from another goroutine while a VM records into it, and
// one profiler may be shared by several VMs.
type Profiler struct {
	methodProfiles sync.Map // uint16 -> *MethodProfile
	nativeProfiles sync.Map // int (kit<<8|method) -> *NativeProfile
}

// NewProfiler creates an empty profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// RecordMethod increments the invocation count of the method at bix.
func (p *Profiler) RecordMethod(bix uint16) {
	val, ok := p.methodProfiles.Load(bix)
	if !ok {
		val, _ = p.methodProfiles.LoadOrStore(bix, &MethodProfile{Bix: bix})
	}
	atomic.AddUint64(&val.(*MethodProfile).InvocationCount, 1)
}

// RecordNative records one call of kit::method that took d.
func (p *Profiler) RecordNative(kit, method int, name string, d time.Duration) {
	key := kit<<8 | method
	val, ok := p.nativeProfiles.Load(key)
	if !ok {
		val, _ = p.nativeProfiles.LoadOrStore(key, &NativeProfile{
			Kit:    kit,
			Method: method,
			Name:   name,
			hist:   hdrhistogram.New(1, int64(time.Minute), 3),
		})
	}
	np := val.(*NativeProfile)
	ns := d.Nanoseconds()
	if ns < 1 {
		ns = 1
	}
	np.mu.Lock()
	_ = np.hist.RecordValue(ns)
	np.mu.Unlock()
}

// NativeStats summarizes one native's latency.
type NativeStats struct {
	Kit, Method int
	Name        string
	Calls       int64
	P50, P99    time.Duration
	Max         time.Duration
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	TotalMethods      int
	MethodInvocations uint64
	NativeCalls       int64
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.methodProfiles.Range(func(key, value any) bool {
		stats.TotalMethods++
		stats.MethodInvocations += atomic.LoadUint64(&value.(*MethodProfile).InvocationCount)
		return true
	})
	for _, n := range p.Natives() {
		stats.NativeCalls += n.Calls
	}
	return stats
}

// MethodCount returns the invocation count of the method at bix.
func (p *Profiler) MethodCount(bix uint16) uint64 {
	if val, ok := p.methodProfiles.Load(bix); ok {
		return atomic.LoadUint64(&val.(*MethodProfile).InvocationCount)
	}
	return 0
}

// TopMethods returns the n most frequently invoked methods.
func (p *Profiler) TopMethods(n int) []MethodProfile {
	var all []MethodProfile
	p.methodProfiles.Range(func(key, value any) bool {
		mp := value.(*MethodProfile)
		all = append(all, MethodProfile{Bix: mp.Bix, InvocationCount: atomic.LoadUint64(&mp.InvocationCount)})
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].InvocationCount != all[j].InvocationCount {
			return all[i].InvocationCount > all[j].InvocationCount
		}
		return all[i].Bix < all[j].Bix
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Natives returns latency statistics for every native called, ordered by
// kit and method id.
func (p *Profiler) Natives() []NativeStats {
	var out []NativeStats
	p.nativeProfiles.Range(func(key, value any) bool {
		np := value.(*NativeProfile)
		np.mu.Lock()
		out = append(out, NativeStats{
			Kit:    np.Kit,
			Method: np.Method,
			Name:   np.Name,
			Calls:  np.hist.TotalCount(),
			P50:    time.Duration(np.hist.ValueAtQuantile(50)),
			P99:    time.Duration(np.hist.ValueAtQuantile(99)),
			Max:    time.Duration(np.hist.Max()),
		})
		np.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kit != out[j].Kit {
			return out[i].Kit < out[j].Kit
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.methodProfiles.Range(func(key, _ any) bool {
		p.methodProfiles.Delete(key)
		return true
	})
	p.nativeProfiles.Range(func(key, _ any) bool {
		p.nativeProfiles.Delete(key)
		return true
	})
}
