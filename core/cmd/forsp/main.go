package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	forsp "github.com/rphilander/forsp/core"
)

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func main() {
	sockPath := os.Getenv("FORSP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/forsp.sock"
	}

	dbPath := os.Getenv("FORSP_DB")
	if dbPath == "" {
		dbPath = "forsp.db"
	}

	opts := forsp.Options{
		MaxDepth: envInt("FORSP_MAX_DEPTH"),
		MaxSteps: envInt("FORSP_MAX_STEPS"),
	}

	core, err := forsp.NewCore(dbPath, sockPath, opts)
	if err != nil {
		log.Fatalf("failed to start core: %v", err)
	}

	// Handle shutdown signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutting down...")
		core.Shutdown()
		os.Exit(0)
	}()

	log.Printf("forsp core listening (socket: %s, db: %s)", sockPath, dbPath)
	core.Run()
}
