// Command memvaultd runs memvault as a long-lived background process:
// it opens a vault and periodically runs the maintenance sweep until
// interrupted. Flag parsing lives here, not in the core module; no
// configuration file is read.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amaydixit11/memvault/internal/vaultlog"
	"github.com/amaydixit11/memvault/pkg/vault"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "daemon":
		cmdDaemon(args)
	case "optimize":
		cmdOptimize(args)
	case "verify":
		cmdVerify(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`memvaultd - Background maintenance process for a memvault vault

Usage: memvaultd <command> [options]

Commands:
  daemon     Run the maintenance sweep on a timer until interrupted
  optimize   Run the maintenance sweep once and exit
  verify     Recompute the vault file's checksum and report drift
  help       Show this help

Options:
  -data string        Data directory, all commands (default: ~/.memvault)
  -interval duration  Sweep interval, daemon only (default 1h)`)
}

func openVault(dataDir string) (*vault.Vault, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".memvault")
	}
	return vault.Open(vault.Config{
		VaultFilePath:  filepath.Join(dataDir, "vault.bin"),
		SliceIndexPath: filepath.Join(dataDir, "index.db"),
		KeyFilePath:    filepath.Join(dataDir, "master.key"),
		Logger:         vaultlog.NewZerolog(os.Stderr),
	})
}

func cmdDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	dataDir := fs.String("data", "", "Data directory")
	interval := fs.Duration("interval", time.Hour, "Sweep interval")
	fs.Parse(args)

	log.Printf("starting memvaultd daemon (sweep interval %s)", *interval)

	v, err := openVault(*dataDir)
	if err != nil {
		log.Fatalf("failed to open vault: %v", err)
	}
	defer v.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runSweep(v)
	for {
		select {
		case <-ticker.C:
			runSweep(v)
		case <-sigCh:
			log.Printf("shutting down")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runSweep(v *vault.Vault) {
	report, err := v.Optimize()
	if err != nil {
		log.Printf("sweep failed: %v", err)
		return
	}
	log.Printf("sweep complete: %d chains deleted, %d slices deleted, %d scores adjusted (%dms)",
		report.ChainsDeleted, report.SlicesDeleted, report.SlicesScoreAdjusted, report.ElapsedMillis)
}

func cmdOptimize(args []string) {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	dataDir := fs.String("data", "", "Data directory")
	fs.Parse(args)

	v, err := openVault(*dataDir)
	if err != nil {
		log.Fatalf("failed to open vault: %v", err)
	}
	defer v.Close()

	report, err := v.Optimize()
	if err != nil {
		log.Fatalf("optimize failed: %v", err)
	}
	fmt.Printf("chains deleted: %d, slices deleted: %d, scores adjusted: %d (%dms)\n",
		report.ChainsDeleted, report.SlicesDeleted, report.SlicesScoreAdjusted, report.ElapsedMillis)
}

func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dataDir := fs.String("data", "", "Data directory")
	fs.Parse(args)

	v, err := openVault(*dataDir)
	if err != nil {
		log.Fatalf("failed to open vault: %v", err)
	}
	defer v.Close()

	if err := v.VerifyIntegrity(); err != nil {
		fmt.Fprintf(os.Stderr, "integrity check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("vault integrity verified")
}
