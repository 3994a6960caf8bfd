//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
	"github.com/jmelkko/dozeguard/internal/monitor"
	"github.com/jmelkko/dozeguard/internal/store"
)

// scriptedDiag stands in for the diagnostics tool with fixed report text.
type scriptedDiag struct {
	mu        sync.Mutex
	requests  string
	overrides string
	err       error
}

func (d *scriptedDiag) RequestsReport(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests, d.err
}

func (d *scriptedDiag) OverridesReport(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overrides, d.err
}

func (d *scriptedDiag) set(requests, overrides string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests, d.overrides, d.err = requests, overrides, err
}

type staticSession bool

func (s staticSession) RemoteActive() bool { return bool(s) }

type settableIdle struct {
	mu sync.Mutex
	d  time.Duration
}

func (s *settableIdle) IdleDuration() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d, nil
}

func (s *settableIdle) set(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d = d
}

type fireCounter struct {
	mu    sync.Mutex
	count int
}

func (c *fireCounter) fire(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *fireCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

const blockedReport = "SYSTEM:\n[DRIVER] Legacy Kernel Caller\nDISPLAY:\nNone.\nAWAYMODE:\nNone.\nEXECUTION:\nNone.\n"

const clearReport = "SYSTEM:\nNone.\nDISPLAY:\nNone.\nAWAYMODE:\nNone.\nEXECUTION:\nNone.\n"

var _ = Describe("Decision Pipeline", func() {
	var (
		tmpDir    string
		ruleStore *store.EncryptedStore
		diag      *scriptedDiag
		session   staticSession
		idle      *settableIdle
		fired     *fireCounter
		ctx       context.Context
	)

	newPipeline := func() (*monitor.SnapshotCache, *monitor.IdleDecisionEngine) {
		logger := zap.NewNop()
		inspector := monitor.NewInspector(diag, ruleStore, session, logger)
		cache := monitor.NewSnapshotCache(inspector, logger)
		engine := monitor.NewIdleDecisionEngine(cache, idle, time.Second, 20*time.Minute, fired.fire, logger)
		return cache, engine
	}

	// awaitVerdict keeps requesting refreshes until the published snapshot
	// reflects the scripted reports. Refreshes are serialized by the cache, so
	// once the verdict matches it cannot revert while the script stays fixed.
	awaitVerdict := func(cache *monitor.SnapshotCache, blocked bool) domain.Snapshot {
		Eventually(func() bool {
			cache.TriggerRefresh(ctx)
			return cache.Current().HasBlockers == blocked
		}, "3s", "10ms").Should(BeTrue())
		return cache.Current()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dozeguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		ruleStore, err = store.Open(
			filepath.Join(tmpDir, "dozeguard.db"),
			filepath.Join(tmpDir, "store.key"),
		)
		Expect(err).NotTo(HaveOccurred())

		diag = &scriptedDiag{requests: blockedReport}
		session = staticSession(false)
		idle = &settableIdle{}
		fired = &fireCounter{}
		ctx = context.Background()
	})

	AfterEach(func() {
		ruleStore.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("blocker detection", func() {
		Context("when a driver holds a system request", func() {
			It("should publish a blocked snapshot with the rendered summary", func() {
				cache, _ := newPipeline()

				snap := awaitVerdict(cache, true)
				Expect(snap.Summary).To(Equal("SYSTEM: [DRIVER] Legacy Kernel Caller"))
			})
		})

		Context("when an administrator override covers the request", func() {
			It("should suppress the blocker", func() {
				diag.set(blockedReport, "DRIVER\nLegacy Kernel Caller\nSYSTEM\n", nil)
				cache, _ := newPipeline()

				snap := awaitVerdict(cache, false)
				Expect(snap.Summary).To(BeEmpty())
			})
		})

		Context("when the diagnostics invocation fails", func() {
			It("should fail closed with the error text as summary", func() {
				diag.set("", "", errors.New("powercfg: exit status 1"))
				cache, _ := newPipeline()

				snap := awaitVerdict(cache, true)
				Expect(snap.Summary).To(ContainSubstring("powercfg"))
			})
		})
	})

	Describe("ignore rules from the store", func() {
		It("should hide ignored blockers on the next refresh", func() {
			cache, _ := newPipeline()
			awaitVerdict(cache, true)

			err := ruleStore.ReplaceIgnoreRules([]domain.IgnoreRule{
				{Section: domain.SectionAny, CallerType: domain.CallerDriver, Name: "legacy kernel caller"},
			})
			Expect(err).NotTo(HaveOccurred())

			awaitVerdict(cache, false)
		})
	})

	Describe("remote sessions", func() {
		It("should keep the machine awake while a remote session is active", func() {
			diag.set(clearReport, "", nil)
			session = staticSession(true)
			cache, _ := newPipeline()

			snap := awaitVerdict(cache, true)
			Expect(snap.Summary).To(ContainSubstring("Remote Desktop"))
		})
	})

	Describe("edge-triggered firing", func() {
		It("should fire exactly once while idle and unblocked, then again after reset", func() {
			diag.set(clearReport, "", nil)
			cache, engine := newPipeline()
			awaitVerdict(cache, false)
			idle.set(30 * time.Minute)

			engine.Tick(ctx)
			engine.Tick(ctx)
			engine.Tick(ctx)
			Expect(fired.get()).To(Equal(1))

			engine.Reset()
			engine.Tick(ctx)
			Expect(fired.get()).To(Equal(2))
		})

		It("should hold fire while blocked and fire once the blocker clears", func() {
			cache, engine := newPipeline()
			awaitVerdict(cache, true)
			idle.set(30 * time.Minute)

			engine.Tick(ctx)
			Expect(fired.get()).To(Equal(0))

			diag.set(clearReport, "", nil)
			awaitVerdict(cache, false)

			engine.Tick(ctx)
			Expect(fired.get()).To(Equal(1))
		})
	})
})
