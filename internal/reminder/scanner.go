package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultScanPeriod     = 20 * time.Second
	DefaultStartupGrace   = 24 * time.Hour
	DefaultSnoozeDuration = 10 * time.Minute

	// MaxSnooze is the longest accepted snooze.
	MaxSnooze = 365 * 24 * time.Hour
)

var (
	ErrNilCollection = errors.New("reminder: task collection is nil")
	ErrNilListener   = errors.New("reminder: listener is nil")
)

// Option configures a Scanner.
type Option func(*Scanner)

// WithScanPeriod sets the delay between the end of one scan and the start of
// the next. Non-positive values are ignored.
func WithScanPeriod(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.period = d
		}
	}
}

// WithStartupGrace bounds how far behind the previous scan an overdue
// trigger may be and still fire.
func WithStartupGrace(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.grace = d
		}
	}
}

func WithSnoozeDuration(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.snooze = d
		}
	}
}

// WithKeyStore makes dedup state survive restarts. Without it dedup is
// memory-only.
func WithKeyStore(store KeyStore) Option {
	return func(s *Scanner) {
		s.store = store
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner periodically walks a task collection and delivers each due
// deadline or event start to its listener at most once per key.
type Scanner struct {
	tasks    Collection
	listener Listener
	store    KeyStore
	logger   *slog.Logger
	now      func() time.Time

	period time.Duration
	grace  time.Duration
	snooze time.Duration

	fired     *FiredSet
	dismissed *FiredSet
	snoozes   *SnoozeTable

	// armMu orders dismiss against snooze so a dismissed key cannot be re-armed.
	armMu     sync.Mutex
	scanMu    sync.Mutex
	persistMu sync.Mutex

	wmMu      sync.Mutex
	watermark time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScanner builds a scanner over tasks and loads any persisted keys so a
// restart does not re-deliver reminders that already fired.
func NewScanner(tasks Collection, listener Listener, opts ...Option) (*Scanner, error) {
	if tasks == nil {
		return nil, ErrNilCollection
	}
	if listener == nil {
		return nil, ErrNilListener
	}

	s := &Scanner{
		tasks:     tasks,
		listener:  listener,
		logger:    slog.Default(),
		now:       time.Now,
		period:    DefaultScanPeriod,
		grace:     DefaultStartupGrace,
		snooze:    DefaultSnoozeDuration,
		fired:     NewFiredSet(),
		dismissed: NewFiredSet(),
		snoozes:   NewSnoozeTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reminder")

	s.loadKeys()
	s.watermark = s.now()

	return s, nil
}

func (s *Scanner) loadKeys() {
	if s.store == nil {
		return
	}

	keys, err := s.store.Load()
	if err != nil {
		s.logger.Warn("failed to load reminder keys, continuing in memory", "error", err)
	}
	s.fired.AddAll(keys)

	dismissed, err := s.loadDismissed()
	if err != nil {
		s.logger.Warn("failed to load dismissed reminder keys", "error", err)
	}
	s.dismissed.AddAll(dismissed)
	s.fired.AddAll(dismissed)

	s.logger.Debug("loaded reminder keys", "count", len(keys), "dismissed", len(dismissed))
}

func (s *Scanner) loadDismissed() ([]Key, error) {
	ds, ok := s.store.(DismissalStore)
	if !ok {
		return nil, nil
	}
	return ds.LoadDismissed()
}

// Reload merges keys written to the store by another process and returns how
// many were new. Fired keys this scanner has snoozed are left armed; a
// dismissal from elsewhere always wins and drops the local snooze.
func (s *Scanner) Reload() (int, error) {
	if s.store == nil {
		return 0, nil
	}

	keys, err := s.store.Load()
	if err != nil {
		return 0, err
	}
	dismissed, err := s.loadDismissed()
	if err != nil {
		return 0, err
	}

	s.armMu.Lock()
	defer s.armMu.Unlock()

	added := 0
	for _, k := range dismissed {
		s.dismissed.Add(k)
		s.snoozes.Clear(k)
		if s.fired.Add(k) {
			added++
		}
	}
	for _, k := range keys {
		if _, snoozed := s.snoozes.Until(k); snoozed {
			continue
		}
		if s.fired.Add(k) {
			added++
		}
	}
	if added > 0 {
		s.logger.Debug("merged reminder keys from store", "added", added)
	}
	return added, nil
}

// Start begins periodic scanning: one scan right away, then one every scan
// period measured from the end of the previous scan. Calling Start on a
// running scanner does nothing. Cancelling ctx stops the loop like Stop,
// without flushing.
func (s *Scanner) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.runningLocked() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done)
}

// Stop halts scanning, waits for an in-flight scan to finish and flushes the
// key store. It is safe to call more than once but must not be called from
// the listener.
func (s *Scanner) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.persist()
}

func (s *Scanner) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.runningLocked()
}

func (s *Scanner) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scanner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.logger.Info("scanner started", "period", s.period, "grace", s.grace)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return
		case <-timer.C:
			if ctx.Err() != nil {
				continue
			}
			s.safeScanOnce()
			timer.Reset(s.period)
		}
	}
}

func (s *Scanner) safeScanOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan failed", "panic", r)
		}
	}()
	s.ScanOnce()
}

// ScanOnce checks every item once and fires whatever is due. It returns the
// number of reminders delivered.
func (s *Scanner) ScanOnce() int {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	previous := s.Watermark()
	now := s.now()

	fired := 0
	n := s.tasks.Len()
	for i := 0; i < n; i++ {
		fired += s.scanItem(i, previous, now)
	}

	s.wmMu.Lock()
	s.watermark = now
	s.wmMu.Unlock()

	return fired
}

func (s *Scanner) scanItem(index int, previous, now time.Time) (fired int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder check failed", "index", index, "panic", r)
		}
	}()

	item, ok := s.tasks.Item(index)
	if !ok || item == nil {
		return 0
	}
	triggerable, ok := item.(Triggerable)
	if !ok {
		return 0
	}

	for _, trig := range triggerable.Triggers() {
		if s.maybeFire(index, item, trig, previous, now) {
			fired++
		}
	}
	return fired
}

func (s *Scanner) maybeFire(index int, item Item, trig Trigger, previous, now time.Time) bool {
	if trig.At.IsZero() || trig.At.After(now) {
		return false
	}

	key := DeriveKey(trig.Kind, index, trig.At)

	// A key re-armed by a snooze was already inside the window when it first
	// fired, so it is not held to the grace bound again.
	until, snoozed := s.snoozes.Until(key)
	if snoozed && now.Before(until) {
		return false
	}
	if !snoozed && !trig.At.After(previous.Add(-s.grace)) {
		return false
	}
	if s.fired.Contains(key) {
		return false
	}

	label := item.String()

	if !s.claim(key, now) {
		return false
	}

	event := Event{
		Index:       index,
		Label:       label,
		TriggerTime: trig.At.Local(),
		Kind:        trig.Kind,
		Key:         key,
	}

	s.logger.Info("reminder fired", "key", key, "label", label)
	s.listener.OnReminder(event)
	s.persist()

	return true
}

// claim records key as fired unless it is snoozed at now or already fired.
// Holding armMu orders it against SnoozeKey.
func (s *Scanner) claim(key Key, now time.Time) bool {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	if s.snoozes.Active(key, now) {
		return false
	}
	if !s.fired.Add(key) {
		return false
	}
	s.snoozes.Clear(key)
	return true
}

// Dismiss marks the event as handled for good. A nil event is ignored.
func (s *Scanner) Dismiss(ev *Event) {
	if ev == nil {
		return
	}
	s.DismissKey(ev.Key)
}

func (s *Scanner) DismissKey(k Key) {
	if k == "" {
		return
	}

	s.armMu.Lock()
	s.dismissed.Add(k)
	s.fired.Add(k)
	s.snoozes.Clear(k)
	s.armMu.Unlock()

	s.logger.Debug("reminder dismissed", "key", k)
	s.persist()
}

// Snooze suppresses the event for d and re-arms it, so the first scan after
// d has elapsed delivers it once more. Nil events, dismissed keys and
// durations outside (0, MaxSnooze] are ignored.
func (s *Scanner) Snooze(ev *Event, d time.Duration) {
	if ev == nil {
		return
	}
	s.SnoozeKey(ev.Key, d)
}

// SnoozeDefault snoozes for the configured default duration.
func (s *Scanner) SnoozeDefault(ev *Event) {
	s.Snooze(ev, s.snooze)
}

func (s *Scanner) SnoozeKey(k Key, d time.Duration) {
	if k == "" || d <= 0 || d > MaxSnooze {
		return
	}

	s.armMu.Lock()
	if s.dismissed.Contains(k) {
		s.armMu.Unlock()
		s.logger.Debug("ignoring snooze of dismissed reminder", "key", k)
		return
	}
	until := s.now().Add(d)
	s.snoozes.Set(k, until)
	s.fired.Remove(k)
	s.armMu.Unlock()

	s.logger.Debug("reminder snoozed", "key", k, "until", until)
	s.persist()
}

// SnoozeDuration returns the default snooze duration.
func (s *Scanner) SnoozeDuration() time.Duration {
	return s.snooze
}

// Watermark returns the instant the last completed scan started at.
func (s *Scanner) Watermark() time.Time {
	s.wmMu.Lock()
	defer s.wmMu.Unlock()
	return s.watermark
}

func (s *Scanner) persist() {
	if s.store == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// Dismissals are written first: a watcher in another process reloads on
	// the fired file and must see them by then.
	if ds, ok := s.store.(DismissalStore); ok {
		if err := ds.SaveDismissed(s.dismissed.Keys()); err != nil {
			s.logger.Warn("failed to save dismissed reminder keys", "error", err)
		}
	}

	keys := s.fired.Keys()
	if err := s.store.Save(keys); err != nil {
		s.logger.Warn("failed to save reminder keys", "error", err)
		return
	}
	s.logger.Debug("saved reminder keys", "count", len(keys))
}
