package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Version is stamped at build time via -ldflags; "dev" covers local builds.
var Version = "dev"

// RunCLI handles subcommand execution ahead of the default "serve" path.
// Returns true if a subcommand was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("netcodeserver %s\n", Version)
		return true
	case "genkey":
		return cliGenKey()
	case "fingerprint":
		return cliFingerprint(args[1:])
	default:
		return false
	}
}

// cliGenKey prints a random 32-byte handshake secret, hex-encoded, for an
// operator to place in NETCODE_HANDSHAKE_SECRET before their first deploy.
func cliGenKey() bool {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		fmt.Fprintf(os.Stderr, "error generating key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hex.EncodeToString(buf[:]))
	return true
}

// cliFingerprint generates a throwaway self-signed cert for hostname and
// prints its SHA-256 fingerprint, letting an operator sanity-check what a
// `serve` invocation would present before wiring up a dev client.
func cliFingerprint(args []string) bool {
	hostname := "localhost"
	if len(args) > 0 {
		hostname = args[0]
	}
	_, fp, err := generateTLSConfig(defaultCertValidity, hostname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating certificate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(fp)
	return true
}
