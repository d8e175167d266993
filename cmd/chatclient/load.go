package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"marketplace/client"
)

type loadConfig struct {
	Username string
	Password string
	ChatID   int64
	Workers  int
	Duration time.Duration
	Rate     int
}

type loadStats struct {
	Sent     int64
	Failed   int64
	Received int64
}

func (s *loadStats) print(label string) {
	log.Printf("%s: sent=%d failed=%d received=%d", label,
		atomic.LoadInt64(&s.Sent), atomic.LoadInt64(&s.Failed), atomic.LoadInt64(&s.Received))
}

func parseLoadFlags() *loadConfig {
	lc := &loadConfig{}
	flag.StringVar(&lc.Username, "username", os.Getenv("CHAT_USERNAME"), "Login used by load workers")
	flag.StringVar(&lc.Password, "password", os.Getenv("CHAT_PASSWORD"), "Password used by load workers")
	flag.Int64Var(&lc.ChatID, "chat", 0, "Chat id to send to")
	flag.IntVar(&lc.Workers, "workers", 4, "Number of concurrent sockets")
	flag.DurationVar(&lc.Duration, "duration", 30*time.Second, "Test duration (0 for infinite)")
	flag.IntVar(&lc.Rate, "rate", 5, "Messages per second per worker")
	return lc
}

// runLoad opens Workers sockets to one chat and sends at a fixed rate,
// counting what each socket sends and receives.
func runLoad(baseURL string, lc *loadConfig) error {
	if lc.ChatID <= 0 || lc.Workers <= 0 || lc.Rate <= 0 {
		return fmt.Errorf("chat, workers and rate must be positive")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if lc.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lc.Duration)
		defer cancel()
	}

	api := client.New(baseURL)
	if _, err := api.Login(ctx, lc.Username, lc.Password); err != nil {
		return err
	}

	var stats loadStats
	var wg sync.WaitGroup
	for i := 0; i < lc.Workers; i++ {
		conn, err := api.Dial(ctx, lc.ChatID)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			loadWorker(ctx, id, conn, lc.Rate, &stats)
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-ticker.C:
			stats.print("progress")
		case <-done:
			stats.print("finished")
			return nil
		}
	}
}

func loadWorker(ctx context.Context, id int, conn *client.ChatConn, rate int, stats *loadStats) {
	go func() {
		for {
			if _, err := conn.Receive(); err != nil {
				return
			}
			atomic.AddInt64(&stats.Received, 1)
		}
	}()
	defer conn.Close()

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Send(fmt.Sprintf("load test message %d from worker %d", n, id)); err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				continue
			}
			atomic.AddInt64(&stats.Sent, 1)
		}
	}
}
