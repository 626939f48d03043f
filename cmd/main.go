// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/config"
	"github.com/eventgrid/eventgrid/internal/database"
	"github.com/eventgrid/eventgrid/internal/handler"
	"github.com/eventgrid/eventgrid/internal/repository"
	"github.com/eventgrid/eventgrid/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to PostgreSQL and migrate ─────────────────────────────
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("connected to postgres, schema up to date")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	clk := clock.NewSystem()
	bus := service.NewBus()
	bus.Subscribe(func(evt service.DomainEvent) {
		log.Printf("domain event=%s event_id=%s registration_id=%s ticket_id=%s",
			evt.Name, evt.EventID, evt.RegistrationID, evt.TicketID)
	})

	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	teamMgr := service.NewTeamManager(teamRepo, clk)
	ticketSvc := service.NewTicketService(ticketRepo, regRepo, eventRepo, bus, clk)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, teamMgr, ticketSvc, bus, clk, cfg.PaymentPendingTTL)
	eventSvc := service.NewEventService(eventRepo, teamMgr, clk)
	h := handler.New(eventSvc, regSvc, ticketSvc, teamMgr)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for browser clients

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/transition", h.TransitionEvent)
		r.Post("/{id}/close", h.CloseEvent)
		r.Post("/{id}/register", h.Register)
		r.Get("/{id}/registrations", h.ListRegistrations)
		r.Get("/{id}/registrations/export", h.ExportRegistrations)
		r.Get("/{id}/teams/underfilled", h.UnderfilledTeams)
	})
	r.Route("/registrations", func(r chi.Router) {
		r.Get("/{id}", h.GetRegistration)
		r.Delete("/{id}", h.CancelRegistration)
	})
	r.Post("/payments/callback", h.PaymentCallback)
	r.Get("/teams/{id}", h.GetTeam)
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/verify/{code}", h.VerifyTicket)
		r.Post("/checkin", h.CheckIn)
	})

	// ── 4. Janitor: reclaim pending registrations that never paid ────────
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go func() {
		ticker := time.NewTicker(cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				n, err := regSvc.ReapStalePending(janitorCtx)
				if err != nil {
					log.Printf("janitor sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("janitor reclaimed %d stale pending registrations", n)
				}
			}
		}
	}()

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server")
	stopJanitor()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
