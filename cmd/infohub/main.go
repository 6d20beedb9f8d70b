// Command infohub serves the tool-invocation gateway over HTTP or SSE.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/config"
	"github.com/effective-security/infohub/gateway"
	"github.com/effective-security/infohub/mcp"
	"github.com/effective-security/infohub/mcp/transport/httptransport"
	"github.com/effective-security/infohub/mcp/transport/sse"
	"github.com/effective-security/infohub/pkg/azopenai"
	"github.com/effective-security/infohub/pkg/azsearch"
	"github.com/effective-security/infohub/tools"
	"github.com/effective-security/infohub/tools/aisearch"
	"github.com/effective-security/infohub/tools/calculator"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/infohub", "infohub")

func main() {
	cfgFile := flag.String("cfg", "", "path to the configuration file")
	addr := flag.String("addr", "", "listen address, overrides the configuration")
	transportName := flag.String("transport", "", "serving transport, http or sse, overrides the configuration")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	if err := run(*cfgFile, *addr, *transportName); err != nil {
		logger.KV(xlog.ERROR, "err", err.Error())
		os.Exit(1)
	}
}

func run(cfgFile, addr, transportName string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if transportName != "" {
		cfg.Server.Transport = transportName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	gw := gateway.New(registry)

	logger.KV(xlog.INFO,
		"addr", cfg.Server.Addr,
		"transport", cfg.Server.Transport,
		"tools", len(gw.Catalog()),
	)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return serveHTTP(cfg.Server.Addr, gw)
	case config.TransportSSE:
		return serveSSE(cfg.Server.Addr, gw)
	}
	return errors.Errorf("unsupported transport: %s", cfg.Server.Transport)
}

// buildRegistry assembles the tool catalog. Registration failures, including
// duplicate names, abort startup.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	add, err := calculator.New()
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(add)
	if err != nil {
		return nil, err
	}

	if cfg.SearchEnabled() {
		embedder := azopenai.NewClient(*cfg.AzureOpenAI)
		searcher := azsearch.NewClient(*cfg.AzureSearch)
		search, err := aisearch.New(embedder, searcher)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(search); err != nil {
			return nil, err
		}
	} else {
		logger.KV(xlog.WARNING, "reason", "Azure sections not configured, serving without the search tool")
	}

	return registry, nil
}

func serveHTTP(addr string, gw *gateway.Gateway) error {
	tr := httptransport.New("/mcp").WithAddr(addr)
	return mcp.NewServer(tr, gw).Serve()
}

func serveSSE(addr string, gw *gateway.Gateway) error {
	router := sse.NewSessionRouter("/messages", func(st *sse.ServerTransport) error {
		server := mcp.NewServer(st, gw)
		if err := server.Serve(); err != nil {
			return err
		}
		return server.AnnounceCatalog()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", router.HandleSSE)
	mux.HandleFunc("/messages", router.HandleMessage)

	return http.ListenAndServe(addr, mux)
}
