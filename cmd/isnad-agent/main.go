// Command isnad-agent runs the agent side of the Isnad handshake against a
// relay auth endpoint and prints the minted token as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/facebookgo/flagenv"
	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/client"
	_ "github.com/joho/godotenv/autoload"
)

var (
	authURL     = flag.String("auth-url", "http://localhost:8923", "base URL of the relay auth endpoint")
	peerID      = flag.String("peer-id", "", "peer ID to authenticate as")
	timeout     = flag.Duration("timeout", 0, "overall HTTP timeout, 0 for none")
	slogLevel   = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	versionFlag = flag.Bool("version", false, "print the version and exit")
)

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("isnad-agent", isnad.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *peerID == "" {
		slog.Error("-peer-id is required")
		os.Exit(2)
	}

	cli := client.New(&http.Client{Timeout: *timeout})

	token, err := cli.Authenticate(context.Background(), *authURL, *peerID)
	if err != nil {
		slog.Error("authentication failed", "err", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(token)
}
