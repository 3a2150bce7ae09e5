// Command keygen provisions a service API key for a client app. It
// prints the plaintext key exactly once; only the bcrypt hash goes into
// the server's SERVICE_API_KEYS configuration.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mwhitfield/sentinel/pkg/auth"
)

func main() {
	appID := flag.String("app", "", "app id the key is provisioned for")
	flag.Parse()

	if *appID == "" {
		fmt.Fprintln(os.Stderr, "usage: keygen -app <app-id>")
		os.Exit(1)
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key (shown once, give to the app):\n  %s\n\n", key)
	fmt.Printf("SERVICE_API_KEYS entry:\n  %s:%s\n", *appID, hash)
}
