package reports

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"FinReportsSaas/api"
	"FinReportsSaas/internal/finparse"
	"FinReportsSaas/internal/serviceiface"
	"FinReportsSaas/internal/uploadcache"
)

// Deps carries everything the reports handlers need. All state is injected;
// the package keeps no globals.
type Deps struct {
	Pool    *pgxpool.Pool
	Cache   uploadcache.Store
	Suggest finparse.SuggestFunc
	locks   *keyedLocks
}

func NewDeps(pool *pgxpool.Pool, cache uploadcache.Store, suggest finparse.SuggestFunc) *Deps {
	return &Deps{
		Pool:    pool,
		Cache:   cache,
		Suggest: suggest,
		locks:   newKeyedLocks(),
	}
}

type ReportsService struct {
	config map[string]interface{}
	deps   *Deps
}

func NewReportsService(cfg map[string]interface{}, deps *Deps) serviceiface.Service {
	return &ReportsService{config: cfg, deps: deps}
}

func (s *ReportsService) Name() string {
	return "reports"
}

func (s *ReportsService) Start() error {
	port := "7143"
	if p, ok := s.config["port"]; ok && p != nil {
		port = fmt.Sprintf("%v", p)
	}
	go StartReportsService(port, s.deps)
	return nil
}

func (s *ReportsService) Stop() error {
	return nil
}

// StartReportsService starts the financial-reports HTTP service.
func StartReportsService(port string, d *Deps) {
	router := mux.NewRouter()

	router.HandleFunc("/reports/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Reports Service is healthy"))
	})

	secured := router.PathPrefix("/reports").Subrouter()
	secured.Use(api.SessionMiddleware)

	secured.Handle("/statements/upload", UploadStatementHandler(d)).Methods(http.MethodPost)
	secured.Handle("/statements/confirm", ConfirmStatementHandler(d)).Methods(http.MethodPost)
	secured.Handle("/statements", ListStatementsHandler(d)).Methods(http.MethodGet)
	secured.Handle("/statements/{id}/line-items", GetLineItemsHandler(d)).Methods(http.MethodGet)
	secured.Handle("/templates", GetTemplateHandler(d)).Methods(http.MethodGet)
	secured.Handle("/templates", DeleteTemplateHandler(d)).Methods(http.MethodDelete)
	secured.Handle("/dashboard", DashboardHandler(d)).Methods(http.MethodGet)
	secured.Handle("/dashboard/snapshots", SnapshotsHandler(d)).Methods(http.MethodGet)

	log.Println("Reports Service started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Reports Service failed: %v", err)
	}
}
