package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"glancehub/internal/auth"
	"glancehub/internal/crypto"
	"glancehub/internal/hub"
	"glancehub/internal/playback"
	"glancehub/internal/scheduler"
	"glancehub/internal/server"
	"glancehub/internal/store"
	"glancehub/internal/topics"
	"glancehub/internal/version"
	"glancehub/internal/weather"
)

// Overridden at build time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	dbPath := envOr("DB_PATH", "./data/glancehub.db")
	listenAddr := envOr("LISTEN_ADDR", ":1337")
	corsOrigin := os.Getenv("CORS_ORIGIN")

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal(err)
	}

	enc, err := loadEncryptor(dataDir)
	if err != nil {
		log.Fatalf("initializing encryption: %v", err)
	}

	s, err := store.New(dbPath, store.WithEncryptor(enc))
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	if err := ensurePairingKey(s); err != nil {
		log.Fatalf("initializing pairing key: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := playback.NewManager()
	defer manager.Deactivate()
	restoreProvider(ctx, s, manager)

	lat := envFloat("WEATHER_LAT", 0)
	lon := envFloat("WEATHER_LON", 0)
	city := envOr("WEATHER_CITY", "")
	weatherClient := weather.New(lat, lon, city)

	sched := scheduler.New()

	registry := hub.NewRegistry()
	for _, th := range []*hub.TopicHandler{
		topics.Time(sched),
		topics.Weather(weatherClient, sched),
		topics.Playback(manager),
		topics.Settings(s),
	} {
		if err := registry.Register(th); err != nil {
			log.Fatalf("registering topic: %v", err)
		}
	}

	h := hub.New(registry, func(key string) bool {
		hash, err := s.GetPairingHash()
		if err != nil || hash == "" {
			return false
		}
		ok, err := auth.VerifyKey(key, hash)
		return err == nil && ok
	})

	sched.Start(ctx)
	defer sched.Stop()

	registry.Setup(ctx, h)
	defer registry.Teardown()

	checker := version.NewChecker(buildVersion)
	go checker.Start(ctx)

	var opts []server.Option
	if corsOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(corsOrigin))
	}
	opts = append(opts,
		server.WithManager(manager),
		server.WithHub(h),
		server.WithVersionChecker(checker),
	)
	srv := server.NewServer(s, opts...)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("GlanceHub %s listening on %s", buildVersion, listenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	h.CloseAll()
}

// loadEncryptor reads the credential encryption key from ENCRYPTION_KEY or
// from a key file in the data directory, generating one on first run.
func loadEncryptor(dataDir string) (*crypto.Encryptor, error) {
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		keyPath := filepath.Join(dataDir, "encryption.key")
		raw, err := os.ReadFile(keyPath)
		switch {
		case err == nil:
			key = strings.TrimSpace(string(raw))
		case os.IsNotExist(err):
			key, err = crypto.GenerateKey()
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(keyPath, []byte(key+"\n"), 0600); err != nil {
				return nil, err
			}
			log.Printf("generated encryption key at %s", keyPath)
		default:
			return nil, err
		}
	}
	return crypto.NewEncryptor(key)
}

// ensurePairingKey generates the display pairing key on first run. The key
// is printed exactly once; only its hash is stored.
func ensurePairingKey(s *store.Store) error {
	hash, err := s.GetPairingHash()
	if err != nil {
		return err
	}
	if hash != "" {
		return nil
	}

	key, err := auth.GeneratePairingKey()
	if err != nil {
		return err
	}
	hash, err = auth.HashKey(key)
	if err != nil {
		return err
	}
	if err := s.SetPairingHash(hash); err != nil {
		return err
	}
	log.Printf("pairing key (shown once, enter it on your display): %s", key)
	return nil
}

// restoreProvider reactivates the playback provider configured before the
// last shutdown. Failure is not fatal; the daemon runs without playback
// until the user reconfigures it.
func restoreProvider(ctx context.Context, s *store.Store, manager *playback.Manager) {
	provider, err := s.GetActiveProvider()
	if err != nil || provider == "" {
		return
	}

	cfg, err := s.GetProviderCredentials(provider)
	if err != nil || cfg == nil {
		log.Printf("no usable credentials for provider %s, skipping restore", provider)
		return
	}

	h, err := playback.NewHandler(provider)
	if err != nil {
		log.Printf("restoring provider %s: %v", provider, err)
		return
	}
	if err := manager.Activate(ctx, h, cfg); err != nil {
		log.Printf("activating provider %s: %v", provider, err)
		return
	}
	log.Printf("playback provider %s restored", provider)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}
