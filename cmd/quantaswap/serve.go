package main

import (
	"fmt"
	"net/http"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/sufferpurrityxd/quantaswap/internal/config"
	"github.com/sufferpurrityxd/quantaswap/internal/httpapi"
	"github.com/sufferpurrityxd/quantaswap/internal/node"
	"github.com/sufferpurrityxd/quantaswap/internal/storage"
)

func newCmd_Serve() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Run a quantaswap node: join the swarm, serve swap requests, and expose the HTTP API.",
		Description: "Loads the node identity and storage from a config file, joins the libp2p swarm, and blocks serving swap and HTTP traffic until interrupted.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to a JSON or YAML config file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			return runServe(c)
		},
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	keypair, err := loadOrCreateIdentity(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}

	store, err := storage.Open(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	orch, err := node.New(keypair, cfg.ListenAddr, store)
	if err != nil {
		return fmt.Errorf("constructing orchestrator: %w", err)
	}

	klog.Infof("quantaswap: listening as %s on %s", orch.Host().ID(), cfg.ListenAddr)

	if len(cfg.BootstrapPeers) > 0 {
		addrs, err := parseBootstrapPeers(cfg.BootstrapPeers)
		if err != nil {
			klog.Warningf("quantaswap: parsing bootstrap peers: %s", err)
		} else if winner, err := orch.DialBootstrapPeers(ctx, addrs); err != nil {
			klog.Warningf("quantaswap: could not reach any bootstrap peer: %s", err)
		} else if winner != "" {
			klog.Infof("quantaswap: bootstrapped via %s", winner)
		}
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(orch.Proxy()),
	}
	go func() {
		klog.Infof("quantaswap: HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("quantaswap: HTTP API exited: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	return orch.Run(ctx)
}

func parseBootstrapPeers(raw []string) ([]peer.AddrInfo, error) {
	out := make([]peer.AddrInfo, 0, len(raw))
	for _, s := range raw {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("parsing multiaddr %q: %w", s, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("resolving peer info from %q: %w", s, err)
		}
		out = append(out, *info)
	}
	return out, nil
}
