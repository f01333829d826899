// Command apikey generates a client secret together with the derived key to register for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jrsteele09/go-tokenator/apikey"
	"github.com/jrsteele09/go-tokenator/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	clientID := flag.String("client", "", "client id the secret is issued to")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *clientID == "" {
		flag.Usage()
		os.Exit(2)
	}

	c, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	verifier, err := apikey.NewVerifier(apikey.CostParams{
		MemoryKiB:   c.GetArgon2MemoryKiB(),
		Iterations:  c.GetArgon2Iterations(),
		Parallelism: c.GetArgon2Parallelism(),
	}, 1, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("creating verifier")
	}

	secret, err := apikey.NewSecret()
	if err != nil {
		log.Fatal().Err(err).Msg("generating secret")
	}
	stored, err := verifier.StoredKey(context.Background(), secret)
	if err != nil {
		log.Fatal().Err(err).Msg("deriving key")
	}

	fmt.Printf("client_id:     %s\n", *clientID)
	fmt.Printf("client_secret: %s\n", secret.String())
	fmt.Printf("api_key:       %s\n", apikey.EncodeAPIKey(*clientID, secret))
	fmt.Printf("stored_key:    %s\n", stored)
}
