// Package main starts the TagLock daemon: it wires the configured store,
// restriction gateway and tag reader into the controller and serves the
// HTTP API.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/config"
	"github.com/atinyakov/TagLock/internal/db"
	"github.com/atinyakov/TagLock/internal/exchange"
	"github.com/atinyakov/TagLock/internal/gateway"
	"github.com/atinyakov/TagLock/internal/logger"
	"github.com/atinyakov/TagLock/internal/mqtt"
	"github.com/atinyakov/TagLock/internal/persist"
	"github.com/atinyakov/TagLock/internal/repository"
	"github.com/atinyakov/TagLock/internal/server/handler/http"
	"github.com/atinyakov/TagLock/internal/service"
	"github.com/atinyakov/TagLock/internal/storage"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(options)
	if err != nil {
		zapLogger.Fatal("cannot open store", zap.String("store", options.Store), zap.Error(err))
	}
	defer closeStore()

	writer := persist.NewWriter(zapLogger)
	// Close drains pending writes, so it must run before the store closes.
	defer writer.Close()

	gw, closeGateway, err := newGateway(options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot connect restriction gateway", zap.Error(err))
	}
	defer closeGateway()

	var session service.TagSession
	if options.TagPath != "" {
		device := exchange.NewFileDevice(options.TagPath, options.TagCapacity)
		session = exchange.NewSession(device, time.Duration(options.SessionTimeout)*time.Second, zapLogger)
		zapLogger.Info("tag reader attached", zap.String("path", device.Path()))
	}

	ctrl := service.NewController(service.Config{
		Store:   store,
		Writer:  writer,
		Gateway: gw,
		Session: session,
		Logger:  zapLogger,
	})
	if err := ctrl.Load(ctx); err != nil {
		zapLogger.Fatal("cannot load state", zap.Error(err))
	}
	st := ctrl.Status()
	zapLogger.Info("state loaded",
		zap.Int("profiles", len(ctrl.Profiles())),
		zap.Bool("locked", st.Locked),
		zap.Int("emergency_unlocks_remaining", st.EmergencyUnlocksRemaining),
	)

	go reloadOnHangup(ctx, ctrl, zapLogger)

	profileHandler := &http.ProfileHandler{ProfileService: ctrl}
	lockHandler := &http.LockHandler{LockService: ctrl, Log: zapLogger}
	router := http.NewRouter(profileHandler, lockHandler, zapLogger, options.ClientCA != "")

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLSCert != "" {
		tlsConfig, err := serverTLS(options)
		if err != nil {
			zapLogger.Fatal("invalid TLS configuration", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting server", zap.String("addr", options.Port), zap.Bool("tls", server.TLSConfig != nil))
	if server.TLSConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// reloadOnHangup rereads the store on SIGHUP, e.g. after the database was
// restored from a backup.
func reloadOnHangup(ctx context.Context, ctrl *service.Controller, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := ctrl.Reload(ctx); err != nil {
				log.Error("reload failed", zap.Error(err))
			}
		}
	}
}

func openStore(options *config.Options) (persist.ByteStore, func(), error) {
	switch options.Store {
	case config.StoreSQLite:
		conn, err := db.Init(db.DriverSQLite, options.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLStore(conn), func() { _ = conn.Close() }, nil
	case config.StorePostgres:
		conn, err := db.Init(db.DriverPostgres, options.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLStore(conn), func() { _ = conn.Close() }, nil
	default:
		fs, err := storage.Open(options.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

func newGateway(options *config.Options, log *zap.Logger) (service.Gateway, func(), error) {
	if options.MQTTBroker == "" {
		log.Warn("no mqtt broker configured, restrictions are only logged")
		return gateway.NewLog(log), func() {}, nil
	}
	client, err := mqtt.Connect(mqtt.Config{
		Broker:   options.MQTTBroker,
		ClientID: options.MQTTClientID,
		Username: options.MQTTUsername,
		Password: options.MQTTPassword,
		QoS:      1,
	})
	if err != nil {
		return nil, nil, err
	}
	return gateway.NewMQTT(client, options.MQTTTopic, log), func() { _ = client.Close() }, nil
}

func serverTLS(options *config.Options) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if options.ClientCA == "" {
		return tlsConfig, nil
	}

	caCert, err := os.ReadFile(options.ClientCA)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to append client CA to pool")
	}
	// Status stays reachable without a certificate; CertAuth guards the rest.
	tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	tlsConfig.ClientCAs = pool
	return tlsConfig, nil
}
