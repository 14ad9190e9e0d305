package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lobsim/lobsim/sim/book"
	"github.com/lobsim/lobsim/sim/runner"
)

var (
	serveAddr        string
	serveConcurrency int
)

// maxTradePage caps the trades returned by one request.
const maxTradePage = 10_000

// statusServer exposes a runner.Registry over HTTP.
type statusServer struct {
	registry *runner.Registry
	// baseCtx gates queued runs; it is cancelled on shutdown so nothing new starts.
	baseCtx context.Context
}

// newRouter builds the HTTP handler for s. metrics serves /metrics.
func newRouter(s *statusServer, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "lobsim", "runs": s.registry.Counts()})
	})
	r.Handle("/metrics", metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.createRun)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{runID}", s.getRun)
		r.Get("/runs/{runID}/trades", s.getTrades)
	})
	return r
}

// createRun handles POST /api/v1/runs. The body is a scenario in JSON or
// YAML; omitted fields take their defaults.
func (s *statusServer) createRun(w http.ResponseWriter, r *http.Request) {
	sc, err := runner.ParseScenario(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := s.registry.Submit(s.baseCtx, sc)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Location", "/api/v1/runs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// listRuns handles GET /api/v1/runs
func (s *statusServer) listRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// getRun handles GET /api/v1/runs/{runID}
func (s *statusServer) getRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.registry.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type tradeJSON struct {
	Timestamp    int64  `json:"timestamp"`
	MakerID      uint64 `json:"maker_id"`
	TakerID      uint64 `json:"taker_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	TakerSide    string `json:"taker_side"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
}

type tradePage struct {
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Trades []tradeJSON `json:"trades"`
}

// getTrades handles GET /api/v1/runs/{runID}/trades?offset=&limit=
func (s *statusServer) getTrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	st, ok := s.registry.Get(id)
	if !ok {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}
	res, ok := s.registry.Result(id)
	if !ok {
		writeError(w, "run is "+string(st.State), http.StatusConflict)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 1000)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit = min(limit, maxTradePage)

	start := min(offset, len(res.Trades))
	end := min(start+limit, len(res.Trades))
	page := tradePage{Total: len(res.Trades), Offset: start, Trades: make([]tradeJSON, 0, end-start)}
	for _, t := range res.Trades[start:end] {
		page.Trades = append(page.Trades, toTradeJSON(t))
	}
	writeJSON(w, http.StatusOK, page)
}

func toTradeJSON(t book.Trade) tradeJSON {
	return tradeJSON{
		Timestamp:    t.Timestamp,
		MakerID:      t.MakerID,
		TakerID:      t.TakerID,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		TakerSide:    t.TakerSide.String(),
		Price:        t.Price,
		Quantity:     t.Quantity,
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run status API",
	Run: func(cmd *cobra.Command, args []string) {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s := &statusServer{
			registry: runner.NewRegistry(
				runner.WithConcurrency(serveConcurrency),
				runner.WithRegisterer(promReg),
				runner.WithLogger(logrus.WithField("component", "runner")),
			),
			baseCtx: ctx,
		}

		srv := &http.Server{
			Addr:         serveAddr,
			Handler:      newRouter(s, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logrus.Infof("lobsim status API listening on %s", serveAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatalf("Server error: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logrus.Info("Shutting down; queued runs will not start")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Shutdown error: %v", err)
		}
		s.registry.Wait()
	},
}

func registerServe(root *cobra.Command) {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 2, "Maximum runs executing at once")
	root.AddCommand(serveCmd)
}
