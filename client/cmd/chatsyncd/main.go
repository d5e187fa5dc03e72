// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/talentwire/chatsync/client/chat"
	"github.com/talentwire/chatsync/client/config"
	"github.com/talentwire/chatsync/client/connection"
	"github.com/talentwire/chatsync/client/handlers"
	"github.com/talentwire/chatsync/client/logging"
	"github.com/talentwire/chatsync/client/metrics"
	"github.com/talentwire/chatsync/client/middleware"
	"github.com/talentwire/chatsync/client/remote"
	"github.com/talentwire/chatsync/client/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHATSYNC_CONFIG"), "path to config file")
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init(cfg.Logging.Level)

	// Redis connection for session continuity
	var cache chat.Cache
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = session.NewCache(rdb)
	}

	backend := remote.New(cfg.Backend.BaseURL, cfg.Backend.Token)
	conn := connection.NewManager(connection.NATSDialer(cfg.NATS.URL))

	sess := chat.New(chat.Options{
		Self:     cfg.Identity.Self,
		PeerRole: cfg.PeerRole(),
		Conn:     conn,
		Backend:  backend,
		Cache:    cache,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.API.Token)
	syncHandler := handlers.NewSyncHandler(sess)

	r := mux.NewRouter()
	r.Use(middleware.CORS(cfg.API.AllowedOrigins))

	api := r.PathPrefix("/api/sync").Subrouter()
	api.Use(authMiddleware)

	api.HandleFunc("/state", syncHandler.GetState).Methods("GET")
	api.HandleFunc("/send", syncHandler.SendMessage).Methods("POST")
	api.HandleFunc("/recipient", syncHandler.SelectRecipient).Methods("POST")
	api.HandleFunc("/message/{messageId}/visible", syncHandler.MarkVisible).Methods("POST")
	api.HandleFunc("/message/{messageId}/reply", syncHandler.SetReply).Methods("POST")
	api.HandleFunc("/message/{messageId}", syncHandler.DeleteMessage).Methods("DELETE")
	api.HandleFunc("/reply", syncHandler.ClearReply).Methods("DELETE")
	api.HandleFunc("/minimized", syncHandler.SetMinimized).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Health check (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Session cache unavailable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: r,
	}

	go func() {
		logging.Info("sync daemon starting", "addr", cfg.ListenAddr(), "identity", cfg.Identity.Self)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("server shutdown failed", "err", err)
	}
	sess.Close(shutdownCtx)
	if rdb != nil {
		rdb.Close()
	}
}
