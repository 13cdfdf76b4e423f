package router

import (
	"database/sql"
	"encoding/json"
	"net/http"

	mem "careline/internal/adapters/storage/memory"
	pg "careline/internal/adapters/storage/postgres"
	"careline/internal/config"
	"careline/internal/platform/clock"
	"careline/internal/platform/httpclient"

	"careline/internal/adapters/rxnorm"
	"careline/internal/domain/audit"
	"careline/internal/domain/doses"
	"careline/internal/domain/falls"
	"careline/internal/domain/medications"
	"careline/internal/domain/patients"
	"careline/internal/middleware"
	"careline/internal/ports/auth"
	"careline/internal/seed"

	_ "careline/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Cfg *config.Config
	Log zerolog.Logger

	AuthVerifier auth.Verifier // puede ser nil (modo dev con headers X-Debug-*)

	// Opcional: si viene, usa Postgres. Si no, repos in-memory.
	DB *sql.DB
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		patientRepo patients.Repository
		medRepo     medications.Repository
		doseRepo    doses.Repository
		fallRepo    falls.Repository
		auditRepo   audit.Repository
		rxCache     rxnorm.Cache
	)

	if opts.DB != nil {
		patientRepo = pg.NewPatientsRepo(opts.DB)
		medRepo = pg.NewMedicationsRepo(opts.DB)
		doseRepo = pg.NewDoseEventsRepo(opts.DB)
		fallRepo = pg.NewFallsRepo(opts.DB)
		auditRepo = pg.NewAuditRepo(opts.DB)
		rxCache = pg.NewRxNormCacheRepo(opts.DB)
	} else {
		memPatients := mem.NewPatientRepo()
		memMeds := mem.NewMedicationRepo()
		patientRepo = memPatients
		medRepo = memMeds
		doseRepo = mem.NewDoseEventRepo(memMeds, memPatients)
		fallRepo = mem.NewFallRepo()
		auditRepo = mem.NewAuditRepo()
		rxCache = mem.NewRxNormCache()
	}

	// Reloj compartido: en dev admite un offset para simular el paso del
	// tiempo en demos.
	now := clock.System()
	if opts.Cfg.ClockOffsetMinutes != 0 {
		now = clock.WithOffset(opts.Cfg.ClockOffsetMinutes)
	}

	// Services por módulo
	patientsSvc := patients.NewService(patientRepo)
	medsSvc := medications.NewService(medRepo)
	dosesSvc := doses.NewService(doseRepo, medications.NewScheduleSource(medsSvc))
	fallsSvc := falls.NewService(fallRepo)
	auditSvc := audit.NewService(auditRepo, opts.Log)

	patientsSvc.SetClock(now)
	medsSvc.SetClock(now)
	dosesSvc.SetClock(now)
	fallsSvc.SetClock(now)
	auditSvc.SetClock(now)

	rxHTTP, err := httpclient.NewWithBaseURL(opts.Cfg.RxNormBaseURL, opts.Cfg.RxNormTimeout())
	if err != nil {
		opts.Log.Warn().Err(err).Msg("invalid rxnorm base url, lookups disabled")
		rxHTTP = httpclient.New(opts.Cfg.RxNormTimeout())
	}
	rxClient := rxnorm.New(rxHTTP, rxCache, opts.Log)
	rxClient.SetClock(now)

	// Rutas por módulo
	patients.RegisterRoutes(r, patientsSvc, medsSvc, dosesSvc, fallsSvc, auditSvc)
	medications.RegisterRoutes(r, medsSvc, dosesSvc, auditSvc)
	doses.RegisterRoutes(r, dosesSvc, patients.NewDirectory(patientsSvc), fallsSvc, auditSvc)
	falls.RegisterRoutes(r, fallsSvc, auditSvc)
	audit.RegisterRoutes(r, auditSvc)
	rxnorm.RegisterRoutes(r, rxClient)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if opts.Cfg.IsDev() {
		r.Route("/dev", func(dr chi.Router) {
			dr.Post("/seed", seedHandler(opts.Log, patientsSvc, medsSvc, dosesSvc, fallsSvc))
			dr.Get("/overdue/{patientID}", doses.OverdueDebugHandler(dosesSvc))
		})
	}

	return r
}

// seedHandler carga las fixtures de demostración. Solo se monta en dev.
func seedHandler(
	log zerolog.Logger,
	patientsSvc *patients.Service,
	medsSvc *medications.Service,
	dosesSvc *doses.Service,
	fallsSvc *falls.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := seed.Demo(r.Context(), patientsSvc, medsSvc, dosesSvc, fallsSvc)
		if err != nil {
			log.Error().Err(err).Msg("seed demo failed")
			http.Error(w, "seed failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(res)
	}
}
