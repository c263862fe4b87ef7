// Command scout fetches pitscout API paths through a local persistent cache.
//
//	scout -url http://localhost:9080 -path /api/events/2024casj/rankings
//	scout -clear
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/pitscout/internal/adapters/localcache"
	"github.com/okian/pitscout/internal/client"
	"github.com/okian/pitscout/internal/config"
	"github.com/okian/pitscout/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PITSCOUT_LOCAL_CACHE_PATH and PITSCOUT_LOG_LEVEL apply here as they do to the server.
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return 1
	}

	fs := flag.NewFlagSet("scout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", serverURL(cfg.Addr), "pitscout server address")
	cacheDir := fs.String("cache", cfg.LocalCachePath, "local cache directory")
	clearCache := fs.Bool("clear", false, "empty the local cache and exit")
	path := fs.String("path", "", "API path to fetch, e.g. /api/teams/frc254")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.InitWithWriter(stderr); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return 1
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Named("scout")

	store, err := localcache.Open(*cacheDir)
	if err != nil {
		log.Error(ctx, "open local cache", logger.Error(err))
		return 1
	}
	defer func() { _ = store.Close() }()

	c, err := client.New(*baseURL, store, client.WithLogger(log))
	if err != nil {
		log.Error(ctx, "create client", logger.Error(err))
		return 1
	}

	if *clearCache {
		if err := c.Clear(); err != nil {
			log.Error(ctx, "clear local cache", logger.Error(err))
			return 1
		}
		log.Info(ctx, "local cache cleared", logger.String("dir", *cacheDir))
		return 0
	}

	if *path == "" {
		fmt.Fprintln(stderr, "-path is required unless -clear is set")
		fs.Usage()
		return 2
	}

	body, src, err := c.Get(ctx, *path)
	if err != nil {
		log.Error(ctx, "fetch failed", logger.String("path", *path), logger.Error(err))
		return 1
	}
	log.Debug(ctx, "fetched", logger.String("path", *path), logger.String("source", string(src)))
	_, _ = stdout.Write(body)
	_, _ = stdout.Write([]byte("\n"))
	return 0
}

func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
