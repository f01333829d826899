package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-tokenator/apikey"
	"github.com/jrsteele09/go-tokenator/clients"
	"github.com/jrsteele09/go-tokenator/clients/memoryrepo"
	"github.com/jrsteele09/go-tokenator/clients/redisrepo"
	"github.com/jrsteele09/go-tokenator/exchange"
	"github.com/jrsteele09/go-tokenator/internal/config"
	"github.com/jrsteele09/go-tokenator/server"
	"github.com/jrsteele09/go-tokenator/token/jwt"
	"github.com/jrsteele09/go-tokenator/token/keys"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const upstreamHTTPTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := store.NewClient(c)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := waitForRedis(ctx, rdb); err != nil {
		return err
	}

	tokenStore, err := store.New(rdb, c.GetKeyPrefix())
	if err != nil {
		return err
	}
	clientRepo, err := newClientRepo(c, rdb)
	if err != nil {
		return err
	}
	signer, err := newSigner(c)
	if err != nil {
		return err
	}
	secrets, err := apikey.NewVerifier(apikey.CostParams{
		MemoryKiB:   c.GetArgon2MemoryKiB(),
		Iterations:  c.GetArgon2Iterations(),
		Parallelism: c.GetArgon2Parallelism(),
	}, c.GetDerivationWorkers(), c.GetMinVerifyDuration())
	if err != nil {
		return err
	}

	verifier := exchange.NewRemoteVerifier(&http.Client{Timeout: upstreamHTTPTimeout})
	handler := exchange.NewHandler(c, tokenStore, verifier, jwt.NewCreator(c.GetIssuer(), c.GetIDTokenTTL(), signer))

	srv, err := server.New(c, server.Deps{
		Store:    tokenStore,
		Clients:  clientRepo,
		Secrets:  secrets,
		Signer:   signer,
		Exchange: handler,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// waitForRedis pings redis with exponential backoff until it answers or ctx ends.
func waitForRedis(ctx context.Context, rdb redis.UniversalClient) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, rdb.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("redis not reachable")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

func newClientRepo(c config.Config, rdb redis.UniversalClient) (clients.Repo, error) {
	if c.GetClientsSource() == config.ClientsSourceRedis {
		return redisrepo.NewRedisClientRepo(rdb, c.GetKeyPrefix()), nil
	}
	registered, err := clients.LoadFile(c.GetClientsFile())
	if err != nil {
		return nil, err
	}
	log.Info().Int("clients", len(registered)).Str("file", c.GetClientsFile()).Msg("clients loaded")
	return memoryrepo.NewMemoryClientRepo(registered...), nil
}

func newSigner(c config.EnvConfig) (keys.Signer, error) {
	if path := c.GetSigningKeyFile(); path != "" {
		kp, err := keys.LoadKeyPairFromFile("", path)
		if err != nil {
			return nil, err
		}
		return keys.NewKeyPairSigner(kp), nil
	}
	if c.GetEnv() != "DEV" {
		return nil, errors.New("SIGNING_KEY_FILE is required outside DEV")
	}
	log.Warn().Msg("no SIGNING_KEY_FILE set, using an ephemeral signing key")
	kp, err := keys.GenerateRSAKeyPair("", 2048)
	if err != nil {
		return nil, err
	}
	return keys.NewKeyPairSigner(kp), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
