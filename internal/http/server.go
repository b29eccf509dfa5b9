package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"facturepro/internal/cache"
	"facturepro/internal/core"
	applog "facturepro/internal/log"
	"facturepro/internal/middleware/ratelimit"
	"facturepro/internal/middleware/security"
	"facturepro/internal/middleware/trace"
	"facturepro/internal/services"
	"facturepro/internal/storage"
)

// Options tunes the middleware and caches of a Server.
type Options struct {
	Logger       *applog.Logger
	RateLimit    ratelimit.Config
	CatalogSize  int
	CatalogTTL   time.Duration
	CleanupEvery time.Duration
}

// DefaultOptions caches up to 200 catalog lists for 5 minutes.
func DefaultOptions() Options {
	return Options{
		RateLimit:    ratelimit.DefaultConfig(),
		CatalogSize:  200,
		CatalogTTL:   5 * time.Minute,
		CleanupEvery: 10 * time.Minute,
	}
}

type Server struct {
	http.Server
	storage  *storage.SQLiteRepository
	invoices *services.InvoiceService

	limiter  *ratelimit.Limiter
	detector *security.Detector

	// Catalog lists per profile, invalidated on writes.
	clientsCache  *cache.LRUCache[[]core.Client]
	productsCache *cache.LRUCache[[]core.Product]
	cacheManager  *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, repo *storage.SQLiteRepository, invoices *services.InvoiceService, opts Options) *Server {
	defaults := DefaultOptions()
	if opts.CatalogSize <= 0 {
		opts.CatalogSize = defaults.CatalogSize
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = defaults.CatalogTTL
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = defaults.CleanupEvery
	}
	if opts.Logger == nil {
		opts.Logger = applog.NewForLevel("", applog.ComponentHTTP)
	}

	s := &Server{
		storage:       repo,
		invoices:      invoices,
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		detector:      security.NewDetector(),
		clientsCache:  cache.NewLRUCache[[]core.Client](opts.CatalogSize, opts.CatalogTTL),
		productsCache: cache.NewLRUCache[[]core.Product](opts.CatalogSize, opts.CatalogTTL),
		cacheManager:  cache.NewManager(),
		started:       time.Now(),
	}
	s.cacheManager.Register(s.clientsCache)
	s.cacheManager.Register(s.productsCache)
	s.cacheManager.StartCleanup(opts.CleanupEvery)

	router := s.routes()
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})

	var handler http.Handler = router
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	handler = applog.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/totals", s.handleTotals).Methods(http.MethodPost)
	api.HandleFunc("/reference", s.handleReference).Methods(http.MethodPost)

	profile := api.PathPrefix("/profiles/{profileID}").Subrouter()
	profile.HandleFunc("", s.handleGetProfile).Methods(http.MethodGet)
	profile.HandleFunc("", s.handlePutProfile).Methods(http.MethodPut)
	profile.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	profile.HandleFunc("/clients", s.handleListClients).Methods(http.MethodGet)
	profile.HandleFunc("/clients", s.handleCreateClient).Methods(http.MethodPost)
	profile.HandleFunc("/clients/{id}", s.handleDeleteClient).Methods(http.MethodDelete)
	profile.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	profile.HandleFunc("/products", s.handleCreateProduct).Methods(http.MethodPost)
	profile.HandleFunc("/products/{id}", s.handleDeleteProduct).Methods(http.MethodDelete)
	profile.HandleFunc("/invoices", s.handleListInvoices).Methods(http.MethodGet)
	profile.HandleFunc("/invoices", s.handleFinalizeInvoice).Methods(http.MethodPost)

	invoice := api.PathPrefix("/invoices/{id}").Subrouter()
	invoice.HandleFunc("", s.handleGetInvoice).Methods(http.MethodGet)
	invoice.HandleFunc("/send", s.handleSendInvoice).Methods(http.MethodPost)
	invoice.HandleFunc("/paid", s.handleMarkPaid).Methods(http.MethodPost)
	invoice.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)

	return r
}

// Shutdown stops the background cleanups then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// fail logs err and writes its mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponseFor(err)
	if resp.StatusCode() >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	}
	if body, ok := resp.body.(*ErrorBody); ok {
		body.RequestID = trace.GetRequestID(r.Context())
	}
	resp.Write(w)
}
