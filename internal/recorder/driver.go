package recorder

import (
	"log/slog"
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/extract"
	"github.com/ashureev/chat-recorder/internal/schedule"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"golang.org/x/net/html"
)

// Driver discovers new message elements under the container through change
// notifications and a periodic rescan, and reports container loss.
type Driver struct {
	cfg      Config
	doc      *dom.Document
	sched    schedule.Scheduler
	matcher  *vocab.Matcher
	filter   Filter
	catalog  *Catalog
	detector *Detector
	onLost   func()
	logger   *slog.Logger

	container *html.Node
	sub       *dom.Subscription
	rescan    schedule.Timer
	running   bool
	gen       uint64
}

// NewDriver wires discovery to the catalog and detector. onLost runs when the
// container is found detached.
func NewDriver(cfg Config, doc *dom.Document, sched schedule.Scheduler, matcher *vocab.Matcher, catalog *Catalog, detector *Detector, onLost func(), logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cfg:      cfg,
		doc:      doc,
		sched:    sched,
		matcher:  matcher,
		filter:   NewFilter(cfg, matcher),
		catalog:  catalog,
		detector: detector,
		onLost:   onLost,
		logger:   logger,
	}
}

// Start observes container. Any previous observation is stopped first.
func (d *Driver) Start(container *html.Node) {
	d.Stop()
	d.container = container
	d.running = true
	d.gen++
	d.sub = d.doc.Subscribe(d.handleChange)
	d.scheduleRescan()
}

// Stop cancels the subscription and the rescan timer. It is idempotent.
func (d *Driver) Stop() {
	d.running = false
	d.sub.Cancel()
	d.sub = nil
	if d.rescan != nil {
		d.rescan.Stop()
		d.rescan = nil
	}
	d.container = nil
}

// Running reports whether the driver is observing a container.
func (d *Driver) Running() bool { return d.running }

// Baseline catalogues the messages already present under the container
// without tracking them. Messages still being generated are left for discovery.
func (d *Driver) Baseline() int {
	n := 0
	for _, el := range d.candidates(d.container) {
		if d.matcher.Busy(el) {
			continue
		}
		if d.catalog.Admit(el, extract.Fingerprint(el)) {
			n++
		}
	}
	return n
}

// Scan runs one pass of the periodic path immediately.
func (d *Driver) Scan() int {
	if !d.running {
		return 0
	}
	if !d.doc.Attached(d.container) {
		d.lost()
		return 0
	}
	found := 0
	for _, el := range d.candidates(d.container) {
		if d.consider(el) {
			found++
		}
	}
	if found > 0 {
		d.logger.Debug("[DISCOVERY] Rescan found messages", "count", found)
	}
	return found
}

func (d *Driver) scheduleRescan() {
	gen := d.gen
	d.rescan = d.sched.AfterFunc(d.cfg.RescanInterval, func() {
		if !d.running || d.gen != gen {
			return
		}
		d.Scan()
		// Scan may have stopped or restarted the driver through recovery.
		if d.running && d.gen == gen {
			d.scheduleRescan()
		}
	})
}

func (d *Driver) handleChange(c dom.Change) {
	if !d.running {
		return
	}
	if len(c.Removed) > 0 {
		d.detector.FlushDetached()
		if !d.doc.Attached(d.container) {
			d.lost()
			return
		}
	}
	for _, n := range c.Added {
		if !dom.IsElement(n) || n == d.container || !dom.Contains(d.container, n) {
			continue
		}
		if d.qualifies(n) {
			d.consider(n)
		}
		for _, el := range d.candidates(n) {
			d.consider(el)
		}
	}
}

func (d *Driver) lost() {
	d.logger.Warn("[DISCOVERY] Container detached", "container", dom.Describe(d.container))
	d.Stop()
	if d.onLost != nil {
		d.onLost()
	}
}

func (d *Driver) consider(el *html.Node) bool {
	if owner := d.catalog.Owner(el); owner != nil && d.filter.IsList(owner) {
		d.Split(owner)
		return d.detector.Tracking(el)
	}
	return d.admit(el)
}

func (d *Driver) admit(el *html.Node) bool {
	fp := extract.Fingerprint(el)
	if !d.catalog.Admit(el, fp) {
		return false
	}
	d.detector.Track(el, fp)
	return true
}

// Split hands an admitted element that now groups several turns over to the
// turns inside it. A record still monitoring the element is dropped. When it
// was already finalized, inner messages whose text went out with it are
// catalogued without tracking.
func (d *Driver) Split(owner *html.Node) {
	dropped := d.detector.Drop(owner)
	final, settled := d.catalog.Settled(owner)
	d.catalog.Release(owner)

	tracked := 0
	for _, el := range d.candidates(owner) {
		if settled && !d.matcher.Busy(el) && strings.Contains(final, extract.Normalize(el)) {
			d.catalog.Admit(el, extract.Fingerprint(el))
			continue
		}
		if d.consider(el) {
			tracked++
		}
	}
	d.logger.Info("[DISCOVERY] Element holds several turns, split",
		"element", dom.Describe(owner),
		"was_monitoring", dropped,
		"tracked", tracked,
	)
}

func (d *Driver) candidates(n *html.Node) []*html.Node {
	return d.filter.Candidates(n)
}

func (d *Driver) qualifies(el *html.Node) bool {
	return d.filter.Qualifies(el)
}
