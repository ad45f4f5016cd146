// node.go wires the ingestor, commit engine, query adapter and query
// HTTP server together as managed services sharing one lifecycle,
// the monicindex daemon's top-level assembly point.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/monicindex/monicindex/commit"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
	"github.com/monicindex/monicindex/ingest"
	"github.com/monicindex/monicindex/metrics"
	"github.com/monicindex/monicindex/query"
	"github.com/monicindex/monicindex/queryhttp"
)

// Node owns the database, commit engine and every managed service built
// on top of it, started and stopped together through a LifecycleManager.
type Node struct {
	cfg Config

	db     rawdb.Database
	engine *commit.Engine
	m      *metrics.Metrics

	events *EventBus
	health *HealthChecker
	lc     *LifecycleManager

	log log.Logger
}

// New opens the pebble store at cfg.PebbleDir(), resumes (or initializes)
// the commit engine, and registers the ingest loop, query HTTP server and
// (if configured) metrics server as lifecycle-managed services. It does
// not start them; call Start for that.
func New(cfg *Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.InitDataDir(); err != nil {
		return nil, err
	}

	db, err := rawdb.NewPebbleDB(cfg.PebbleDir())
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	m := metrics.New()
	engine, err := commit.New(db, cfg.StartBlock, m)
	if err != nil {
		db.Close()
		return nil, err
	}

	n := &Node{
		cfg:    *cfg,
		db:     db,
		engine: engine,
		m:      m,
		events: NewEventBus(64),
		health: NewHealthChecker(),
		lc:     NewLifecycleManager(DefaultLifecycleConfig()),
		log:    log.New("module", "node"),
	}
	n.health.RegisterSubsystem("commit.engine", engineChecker{engine})
	n.health.RegisterSubsystem("ingest", CheckerFunc(n.ingestHealth))

	adapter := query.New(engine)
	httpSrv := queryhttp.NewServer(adapter, m)

	if err := n.lc.Register(newIngestService(n), 0); err != nil {
		return nil, err
	}
	if err := n.lc.Register(newHTTPService("queryhttp", cfg.BindAddr, httpSrv.Handler()), 10); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr != "" {
		if err := n.lc.Register(newHTTPService("metrics", cfg.MetricsAddr, m.Handler()), 10); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// Start starts every registered service in priority order (ingest loop
// first, so the query servers come up against an already-resuming engine).
func (n *Node) Start() error {
	if errs := n.lc.StartAll(); len(errs) > 0 {
		return fmt.Errorf("node: %d service(s) failed to start: %w", len(errs), errs[0])
	}
	n.log.Info("node started", "datadir", n.cfg.DataDir, "bind", n.cfg.BindAddr)
	return nil
}

// Stop stops every registered service in reverse priority order and
// closes the database.
func (n *Node) Stop() error {
	errs := n.lc.StopAll()
	n.events.Close()
	if closeErr := n.db.Close(); closeErr != nil && len(errs) == 0 {
		return closeErr
	}
	if len(errs) > 0 {
		return fmt.Errorf("node: %d service(s) failed to stop cleanly: %w", len(errs), errs[0])
	}
	return nil
}

// Health returns an aggregate health report across registered subsystems.
func (n *Node) Health() *HealthReport { return n.health.CheckAll() }

// engineChecker adapts *commit.Engine to SubsystemChecker, reporting
// degraded (not unhealthy) on an integrity mismatch: the engine can still
// serve reads, but an operator should investigate before the next commit.
type engineChecker struct{ engine *commit.Engine }

func (c engineChecker) Check() *SubsystemHealth {
	status, msg := StatusHealthy, "ok"
	if err := c.engine.IntegrityCheck(); err != nil {
		status, msg = StatusDegraded, err.Error()
	}
	return &SubsystemHealth{
		Name:      "commit.engine",
		Status:    status,
		Message:   msg,
		LastCheck: time.Now().Unix(),
	}
}

// ingestHealth reports the ingest loop's health from its lifecycle state
// and the EWMA blocks/sec rate: a stopped loop is unhealthy, a running one
// that has made no progress over the last minute is degraded (it may just
// be caught up with the chain head).
func (n *Node) ingestHealth() *SubsystemHealth {
	if n.lc.GetState("ingest") != StateRunning {
		return &SubsystemHealth{Status: StatusUnhealthy, Message: "ingest loop not running"}
	}
	rate := n.m.IngestRatePerSecond()
	if rate == 0 {
		return &SubsystemHealth{Status: StatusDegraded, Message: "no blocks committed in the last minute"}
	}
	return &SubsystemHealth{Status: StatusHealthy, Message: fmt.Sprintf("%.2f blocks/s", rate)}
}

// ingestService drives the engine's commit loop against an upstream
// RPCSource, batching up to cfg.BatchSize contiguous blocks per atomic
// write and publishing lifecycle events as it
// goes.
type ingestService struct {
	n      *Node
	cancel context.CancelFunc
	done   chan struct{}
}

func newIngestService(n *Node) *ingestService {
	return &ingestService{n: n}
}

func (s *ingestService) Name() string { return "ingest" }

func (s *ingestService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	source, err := ingest.DialRPCSource(ctx, s.n.cfg.RPCURL)
	if err != nil {
		cancel()
		return err
	}

	go s.run(ctx, source)
	return nil
}

func (s *ingestService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}

func (s *ingestService) run(ctx context.Context, source *ingest.RPCSource) {
	defer close(s.done)
	defer source.Close()

	log := s.n.log.New("module", "ingest.loop")
	s.n.events.PublishAsync(EventIngestStarted, nil)

	// Transient upstream failures back off exponentially and never
	// terminate the loop. A storage failure is retried with the same
	// backoff up to maxStorageRetries consecutive times, then stops it;
	// other fatal faults stop it at once.
	const maxStorageRetries = 5
	retry := newBackoff(time.Second, time.Minute)
	storageFailures := 0

	for ctx.Err() == nil {
		blocks, err := s.fetchBatch(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ierrors.IsRetryable(err) {
				log.Warn("transient ingest error, backing off", "err", err, "wait", retry.peek())
				if !retry.sleep(ctx) {
					return
				}
				continue
			}
			log.Error("fatal ingest error, stopping", "err", err)
			return
		}
		if len(blocks) == 0 {
			// Caught up with the upstream head; poll again shortly.
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		if err := s.n.engine.CommitBatch(ctx, blocks); err != nil {
			if err == commit.ErrReorgApplied {
				s.n.events.PublishAsync(EventReorg, blocks[0].Number())
				log.Warn("reorg applied, refetching", "number", blocks[0].Number())
				continue
			}
			if ierrors.IsRetryable(err) {
				log.Warn("transient commit error, backing off", "err", err, "wait", retry.peek())
				if !retry.sleep(ctx) {
					return
				}
				continue
			}
			if errors.Is(err, ierrors.ErrStorageFailure) && storageFailures < maxStorageRetries {
				storageFailures++
				log.Warn("storage failure, commit discarded, backing off", "err", err, "attempt", storageFailures, "wait", retry.peek())
				if !retry.sleep(ctx) {
					return
				}
				continue
			}
			log.Error("fatal commit error, stopping", "err", err)
			return
		}

		retry.reset()
		storageFailures = 0
		last := blocks[len(blocks)-1]
		s.n.events.PublishAsync(EventBlockCommitted, last.Number())
		s.reportLag(ctx, source, last.Number())
	}
}

// fetchBatch pulls up to BatchSize contiguous blocks starting at the
// engine's next height. A transient failure after at least one block has
// been fetched truncates the batch rather than discarding it, so forward
// progress survives an upstream that is briefly ahead of us or flaky.
func (s *ingestService) fetchBatch(ctx context.Context, source *ingest.RPCSource) ([]*types.Block, error) {
	limit := s.n.cfg.BatchSize
	if limit < 1 {
		limit = 1
	}
	next := s.n.engine.NextBlockNumber()

	blocks := make([]*types.Block, 0, limit)
	for len(blocks) < limit {
		block, err := source.BlockByNumber(ctx, next+uint64(len(blocks)))
		if err != nil {
			if len(blocks) > 0 && ierrors.IsRetryable(err) {
				break
			}
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// reportLag updates the ingest-lag gauge against the upstream head. Best
// effort: a failed head query leaves the gauge where it was.
func (s *ingestService) reportLag(ctx context.Context, source *ingest.RPCSource, committed uint64) {
	head, err := source.HeadNumber(ctx)
	if err != nil || head < committed {
		return
	}
	s.n.m.IngestLagBlocks.Set(float64(head - committed))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// httpService wraps a plain http.Server as a lifecycle Service.
type httpService struct {
	name string
	srv  *http.Server
}

func newHTTPService(name, addr string, handler http.Handler) *httpService {
	return &httpService{name: name, srv: &http.Server{Addr: addr, Handler: handler}}
}

func (s *httpService) Name() string { return s.name }

func (s *httpService) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go s.srv.Serve(ln)
	return nil
}

func (s *httpService) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
