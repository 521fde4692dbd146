package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	api "github.com/certlane/certlane/internal/api/http"
	auth "github.com/certlane/certlane/internal/auth/middleware"
	"github.com/certlane/certlane/internal/cert"
	"github.com/certlane/certlane/internal/config"
	"github.com/certlane/certlane/internal/db"
	"github.com/certlane/certlane/internal/exam"
	"github.com/certlane/certlane/internal/notify"
	"github.com/certlane/certlane/internal/purchase"
	"github.com/certlane/certlane/internal/rbac"
	"github.com/certlane/certlane/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := bootstrapAdmin(ctx, dbh, cfg); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	// --- Domain wiring ---
	examStore := exam.NewSQLStore(dbh)
	bank := exam.NewBank(examStore, cfg.ExamCacheTTL)
	purchases := purchase.NewSQLStore(dbh)
	notifier := notify.NewEventLogNotifier(dbh)

	certStore := cert.NewSQLStore(dbh)
	issuer := cert.NewIssuer(certStore, cert.WithNotifier(notifier))
	verifier := cert.NewVerificationService(certStore)

	svc := exam.NewService(examStore, bank, purchases,
		exam.WithIssuer(issuer),
		exam.WithNotifier(notifier),
		exam.WithGrace(cfg.SubmitGraceSec),
	)

	artifacts, err := storage.NewFSStore(cfg.ArtifactBasePath)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	// Background sweep keeps abandoned attempts from staying open.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go exam.NewSweeper(svc, cfg.SweepInterval).Run(sweepCtx)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Public verification: anyone holding a certificate number may check it.
	r.Get("/verify/{certificateNumber}", api.VerifyHandler(verifier))

	// Protected API (JWT → DB role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.DevMode))

		// Catalog and publishing (staff)
		pr.With(rbac.Require("exam:publish")).
			Put("/courses/{courseID}", api.UpsertCourseHandler(examStore))
		pr.With(rbac.Require("exam:publish")).
			Post("/courses/{courseID}/exam", api.PublishExamHandler(examStore, bank))
		pr.With(rbac.Require("exam:view")).
			Get("/courses/{courseID}/exam", api.GetExamHandler(bank))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/courses/{courseID}/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers", api.SaveAnswersHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(svc))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/courses/{courseID}/certificate", api.GetOwnCertificateHandler(certStore))

		// Back office (admin)
		pr.With(rbac.Require("purchases:grant")).
			Post("/purchases", api.GrantPurchaseHandler(purchases))
		pr.With(rbac.Require("cert:revoke")).
			Post("/certificates/{certificateID}/revoke", api.RevokeCertificateHandler(issuer))
		pr.With(rbac.Require("cert:artifact")).
			Put("/certificates/{certificateID}/artifact", api.PutArtifactHandler(certStore, artifacts))
		pr.With(rbac.Require("cert:artifact")).
			Get("/certificates/{certificateID}/artifact", api.GetArtifactHandler(artifacts))

		// Users
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// bootstrapAdmin creates the initial admin account when ADMIN_PASS is
// set and the username does not exist yet. Existing rows are left alone
// so a restart never resets a rotated password.
func bootstrapAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	if cfg.AdminPass == "" {
		return nil
	}
	var n int
	if err := dbh.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username=$1`, cfg.AdminUser).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPass), 12)
	if err != nil {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id,username,display_name,role,password_hash) VALUES ($1,$2,$3,'admin',$4)`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminDisplay, string(hash))
	return err
}
