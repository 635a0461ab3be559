/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"

	"github.com/majewsky/ldap-api-server/internal/auth"
	"github.com/majewsky/ldap-api-server/internal/config"
	"github.com/majewsky/ldap-api-server/internal/crypt"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"github.com/majewsky/ldap-api-server/internal/httpapi"
	"github.com/majewsky/ldap-api-server/internal/mailer"
	"github.com/majewsky/ldap-api-server/internal/view"
)

// pwnedPasswordsBaseURL is the well-known k-anonymity range API this service
// queries when a password field has pwnedPasswordCheck enabled.
const pwnedPasswordsBaseURL = "https://api.pwnedpasswords.com"

func main() {
	logg.ShowDebug = os.Getenv("API_DEBUG") == "true"

	configPath := osext.MustGetenv("API_CONFIG_PATH")
	cfg := must.Return(config.Load(configPath))

	gw := directory.NewClient(cfg.Directory)

	deps := fields.Deps{
		ResolveHasher: crypt.HasherByName,
		BreachCheck:   crypt.NewPwnedPasswordsChecker(pwnedPasswordsBaseURL),
	}

	registry := must.Return(view.NewRegistry(gw, cfg.Views, deps))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	must.Succeed(registry.EnsureAutoCreated(ctx))
	cancel()

	authenticator := must.Return(auth.NewAuthenticator(registry, cfg.Auth))
	mailSvc := mailer.NewMailer(cfg.Mailer)

	server := httpapi.NewServer(gw, registry, authenticator, mailSvc, cfg.AllowOrigins)

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		logg.Error("cannot watch config file %s: %s", configPath, err.Error())
	} else {
		go watcher.Run(func() {
			logg.Info("configuration file changed on disk, exiting for supervisor restart")
			os.Exit(0)
		})
		defer watcher.Close()
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Handler(),
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logg.Info("received shutdown signal, draining connections")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logg.Error("graceful shutdown failed: %s", err.Error())
		}
	}()

	logg.Info("listening on %s", cfg.Listen)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logg.Fatal(err.Error())
	}
}
