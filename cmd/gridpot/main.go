// Command gridpot starts the gridpot ledger service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gridpot/bank"
	"gridpot/config"
	"gridpot/core"
	"gridpot/crypto/certgen"
	"gridpot/engine"
	"gridpot/events"
	"gridpot/indexer"
	"gridpot/rpc"
	"gridpot/storage"
	"gridpot/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "operator.key", "path to operator keystore file")
	genKey := flag.Bool("genkey", false, "generate a new operator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + server TLS certs into the given directory and exit")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("GRIDPOT_PASSWORD")
	if password == "" {
		log.Println("WARNING: GRIDPOT_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Operator address: %s\n", w.Address())
		fmt.Printf("Public key: %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		if err := certgen.GenerateAll(*genCerts, "gridpot", nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s\n", *genCerts)
		return
	}

	// ---- load operator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	operator := wallet.New(privKey)

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Game.Operator == "" {
		// Fees default to the signing key's own address.
		cfg.Game.Operator = operator.Address()
		log.Printf("game.operator not set, using key address %s", cfg.Game.Operator)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/world")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	// ---- world state ----
	state := storage.NewStateDB(db)

	// ---- receipt journal ----
	journal := core.NewJournal(storage.NewLevelReceiptStore(db))
	if err := journal.Init(); err != nil {
		log.Fatalf("journal init: %v", err)
	}

	// ---- genesis (if fresh world) ----
	seeded, err := config.InitState(cfg, state, time.Now())
	if err != nil {
		log.Fatalf("genesis: %v", err)
	}
	if seeded {
		log.Printf("Fresh world seeded: %d genesis account(s), cycle 1 open", len(cfg.Genesis.Alloc))
	}

	// ---- events + indexer ----
	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)

	// ---- engine ----
	svc, err := engine.NewService(engine.Params{
		Width:        cfg.Game.Width,
		Height:       cfg.Game.Height,
		InitialPrice: cfg.Game.InitialPrice,
		PriceNum:     cfg.Game.PriceNumerator,
		PriceDen:     cfg.Game.PriceDenominator,
		OwnerPct:     cfg.Game.OwnerPct,
		PoolPct:      cfg.Game.PoolPct,
		OperatorPct:  cfg.Game.OperatorPct,
		Window:       cfg.Game.Window(),
		Operator:     cfg.Game.Operator,
	}, state, bank.New(state), journal, emitter, privKey, nil)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("TLS enabled for RPC")
	}

	// ---- RPC + event feed ----
	feed := rpc.NewEventFeed(emitter)
	defer feed.Close()
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(svc, idx, journal)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, feed, cfg.RPCAuthToken, tlsCfg)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	// ---- cycle sweeper ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunSweeper(time.Duration(cfg.SweepSeconds)*time.Second, done)
	}()
	log.Printf("Sweeper running (grid %dx%d, operator %s)",
		cfg.Game.Width, cfg.Game.Height, cfg.Game.Operator)

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// 1. Stop the sweeper first (no new settlements written)
	close(done)
	wg.Wait()

	// 2. Deferred calls run in LIFO: rpcServer.Stop → feed.Close → db.Close
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
