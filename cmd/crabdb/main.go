package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nsavio/crabdb/pkg/engine"
	"github.com/nsavio/crabdb/pkg/server"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "Data directory for the storage engine's data file")
	poolSize := flag.Int("pool-size", 1000, "Buffer pool size in frames (1 frame = 4KB)")
	lruK := flag.Int("lru-k", 2, "k for the LRU-K replacer")
	bucketMaxSize := flag.Int("bucket-max-size", 256, "Hash index bucket capacity")
	trackResources := flag.Bool("track-resources", false, "Sample process memory/goroutines and disk I/O for /metrics")

	host := flag.String("host", "localhost", "Admin server host address")
	port := flag.Int("port", 8080, "Admin server port")
	enableTLS := flag.Bool("tls", false, "Enable TLS/SSL on the admin server")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file")
	flag.Parse()

	engCfg := engine.DefaultConfig(*dataDir)
	engCfg.PoolSize = *poolSize
	engCfg.LRUK = *lruK
	engCfg.BucketMaxSize = *bucketMaxSize
	engCfg.TrackResources = *trackResources

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crabdb: failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.Open(engCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crabdb: failed to open engine: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.Host = *host
	srvCfg.Port = *port
	srvCfg.DataDir = *dataDir
	srvCfg.PoolSize = *poolSize
	srvCfg.LRUK = *lruK
	srvCfg.BucketMaxSize = *bucketMaxSize
	srvCfg.EnableTLS = *enableTLS
	srvCfg.TLSCertFile = *tlsCert
	srvCfg.TLSKeyFile = *tlsKey

	if *enableTLS && (*tlsCert == "" || *tlsKey == "") {
		certPath := *dataDir + "/server.crt"
		keyPath := *dataDir + "/server.key"
		if err := server.GenerateSelfSignedCert(certPath, keyPath, *host); err != nil {
			fmt.Fprintf(os.Stderr, "crabdb: failed to generate self-signed certificate: %v\n", err)
			os.Exit(1)
		}
		srvCfg.TLSCertFile = certPath
		srvCfg.TLSKeyFile = keyPath
	}

	srv, err := server.New(srvCfg, eng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crabdb: failed to create admin server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "crabdb: server error: %v\n", err)
		os.Exit(1)
	}
}
