package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/yieldgap-ma/yg-backend/internal/config"
	"github.com/yieldgap-ma/yg-backend/internal/db"
	"github.com/yieldgap-ma/yg-backend/internal/middleware"
	"github.com/yieldgap-ma/yg-backend/internal/tasks"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"golang.org/x/time/rate"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	d, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := yieldgap.Migrate(d); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	runner := tasks.NewRunner(context.Background(), d)
	// one CSV import every 10s, bursts of 3
	limiter := rate.NewLimiter(rate.Every(10*time.Second), 3)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Mount("/api/tasks", tasks.SetupRoutes(runner, cfg.DataDir, limiter))
	r.Mount("/api", yieldgap.SetupRoutes(d))

	fmt.Printf("Server listening on port :%s...\n", cfg.Port)

	log.Fatal(http.ListenAndServe("0.0.0.0:"+cfg.Port, r))
}
