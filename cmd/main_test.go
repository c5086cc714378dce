package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/adapters/http/auth"
	app "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/config"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	ownerHex = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	secret   = "0123456789abcdef0123456789abcdef"
)

func clearEnv() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "TALENTBOARD_") {
			_ = os.Unsetenv(k)
		}
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given the server entry point", t, func() {
		clearEnv()
		convey.Reset(clearEnv)

		convey.Convey("When no owner is configured", func() {
			_ = os.Setenv("TALENTBOARD_JWT_SECRET", secret)
			err := run()

			convey.Convey("Then it refuses to start", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "owner")
			})
		})

		convey.Convey("When the signing secret is too short", func() {
			_ = os.Setenv("TALENTBOARD_OWNER", ownerHex)
			_ = os.Setenv("TALENTBOARD_JWT_SECRET", "short")
			err := run()

			convey.Convey("Then it refuses to start", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "jwt_secret")
			})
		})

		convey.Convey("When the store kind is unknown", func() {
			_ = os.Setenv("TALENTBOARD_STORE", "redis")
			err := run()

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given the handler built from a valid config", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.Owner = ownerHex
		cfg.JWTSecret = secret
		cfg.TokenTTL = time.Hour
		convey.So(cfg.Validate(), convey.ShouldBeNil)
		owner, _ := cfg.OwnerIdentity()

		svc := app.New(app.WithOwner(owner), app.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(newHandler(ctx, cfg, svc))
		defer srv.Close()

		convey.Convey("Then docs, metrics and stats are served", func() {
			for _, path := range []string{"/api-docs", "/openapi.yaml", "/healthz", "/stats"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(resp.Header.Get(api.HeaderRequestID), convey.ShouldNotBeEmpty)
			}
		})

		convey.Convey("Then tokens longer than token_ttl are refused", func() {
			talent := model.MustParseIdentity("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
			tok, err := auth.IssueToken([]byte(secret), talent, 2*time.Hour, time.Now())
			convey.So(err, convey.ShouldBeNil)

			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/talents", strings.NewReader(`{"name":"Ada"}`))
			req.Header.Set("Authorization", "Bearer "+tok)
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then they return once the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			svc := app.New()
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
