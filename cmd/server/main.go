package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/kbtrust/internal/config"
	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/governance"
	"github.com/rpattn/kbtrust/internal/ingestion"
	"github.com/rpattn/kbtrust/internal/lineage"
	"github.com/rpattn/kbtrust/internal/middleware"
	"github.com/rpattn/kbtrust/internal/publish"
	"github.com/rpattn/kbtrust/internal/repository"
	"github.com/rpattn/kbtrust/internal/synthesis"
	"github.com/rpattn/kbtrust/migrations"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(migrations.FS, ".", cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	evidenceRepo := repository.NewEvidenceRepository(conn.Pool)
	ticketRepo := repository.NewTicketContextRepository(conn.Pool)
	draftRepo := repository.NewDraftRepository(conn.Pool)
	articleRepo := repository.NewArticleRepository(conn.Pool)
	lineageRepo := repository.NewLineageRepository(conn.Pool)
	eventRepo := repository.NewAuditEventRepository(conn.Pool)
	ingestRepo := repository.NewEvidenceIngestRepository(conn.Pool)

	// Optional synthesis collaborator; the pipeline degrades to fully
	// deterministic synthesis when it is unavailable.
	var collab synthesis.Collaborator
	openaiCollab, err := synthesis.NewOpenAICollaborator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	switch {
	case err == nil:
		collab = openaiCollab
		log.Println("Synthesis collaborator enabled")
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		log.Println("Synthesis collaborator unavailable, using deterministic synthesis")
	default:
		log.Fatalf("Failed to configure synthesis collaborator: %v", err)
	}

	// Create services
	deriver := lineage.NewDeriver(evidenceRepo, lineageRepo)
	synthesizer := synthesis.NewSynthesizer(evidenceRepo, collab)
	assembler := synthesis.NewAssembler(
		conn, ticketRepo, evidenceRepo, draftRepo, eventRepo,
		deriver, synthesizer, cfg.Verifier.Blocking,
	)
	governanceService := governance.NewService(conn, draftRepo, eventRepo)
	publishService := publish.NewService(conn, draftRepo, articleRepo, eventRepo)
	ingestService := ingestion.NewService(conn, ingestRepo)

	// Create HTTP handlers
	generateHandler := synthesis.NewHTTPHandler(assembler)
	draftHandler := governance.NewHTTPHandler(governanceService)
	articleHandler := publish.NewHTTPHandler(publishService)
	provenanceHandler := lineage.NewHTTPHandler(deriver)
	ingestHandler := ingestion.NewHTTPHandler(ingestService)

	// Draft publication lives on the drafts path but belongs to the
	// publication service.
	draftsMux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/publish") {
			articleHandler.ServeHTTP(w, r)
			return
		}
		draftHandler.ServeHTTP(w, r)
	})

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(h))
	}

	http.Handle("/api/drafts/generate", wrap(generateHandler))
	http.Handle("/api/drafts", wrap(draftsMux))
	http.Handle("/api/drafts/", wrap(draftsMux))
	http.Handle("/api/articles", wrap(articleHandler))
	http.Handle("/api/articles/", wrap(articleHandler))
	http.Handle("/api/provenance", wrap(provenanceHandler))
	http.Handle("/api/ingest", wrap(ingestHandler))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting knowledge pipeline server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
