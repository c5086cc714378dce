package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/adapters/http/auth"
	service "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/cli"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/domain/types"
	"github.com/okian/talentboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const secret = "0123456789abcdef0123456789abcdef"

var owner = model.MustParseIdentity("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")

func startServer(t *testing.T) (*httptest.Server, func()) {
	svc := service.New(service.WithOwner(owner), service.WithWorkerCount(2))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, auth.NewVerifier([]byte(secret))).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func run(url string, args ...string) (string, error) {
	root := cli.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--url", url, "--secret", secret}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunScenarios(t *testing.T) {
	convey.Convey("Given a live registry", t, func() {
		srv, stop := startServer(t)
		defer stop()
		c := cli.NewClient(srv.URL, []byte(secret), 5*time.Second)

		convey.Convey("When the scenarios run", func() {
			results, err := cli.RunScenarios(context.Background(), c, cli.ScenarioConfig{Talents: 20, Workers: 4})

			convey.Convey("Then every scenario passes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(results, convey.ShouldHaveLength, 5)
				for _, r := range results {
					convey.So(r.Error, convey.ShouldBeEmpty)
					convey.So(r.Passed, convey.ShouldBeTrue)
				}
			})

			convey.Convey("Then they can run again against the same server", func() {
				_, err := cli.RunScenarios(context.Background(), c, cli.ScenarioConfig{})
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the client signs with the wrong secret", func() {
			bad := cli.NewClient(srv.URL, []byte("not-the-server-secret"), 5*time.Second)
			results, err := cli.RunScenarios(context.Background(), bad, cli.ScenarioConfig{})

			convey.Convey("Then the scenarios fail with unauthorized", func() {
				convey.So(errors.Is(err, cli.ErrScenarioFailed), convey.ShouldBeTrue)
				convey.So(results[0].Passed, convey.ShouldBeFalse)
				convey.So(results[0].Error, convey.ShouldContainSubstring, "unauthorized")
			})
		})
	})
}

func TestClient(t *testing.T) {
	convey.Convey("Given a client for a live registry", t, func() {
		srv, stop := startServer(t)
		defer stop()
		c := cli.NewClient(srv.URL, []byte(secret), 5*time.Second)

		convey.Convey("When a request is rejected", func() {
			id, err := cli.NewIdentity()
			convey.So(err, convey.ShouldBeNil)
			_, err = c.UpdateTalent(context.Background(), cli.Call{As: id}, api.ProfileRequest{Name: "Nobody"})

			convey.Convey("Then the API error is decoded", func() {
				var se *cli.StatusError
				convey.So(errors.As(err, &se), convey.ShouldBeTrue)
				convey.So(se.Status, convey.ShouldEqual, http.StatusNotFound)
				convey.So(se.Code, convey.ShouldEqual, "not_registered")
				convey.So(errors.Is(err, cli.ErrStatus), convey.ShouldBeTrue)
				convey.So(cli.Code(err), convey.ShouldEqual, "not_registered")
			})
		})

		convey.Convey("When events are paged", func() {
			id, _ := cli.NewIdentity()
			_, err := c.RegisterTalent(context.Background(), cli.Call{As: id}, api.ProfileRequest{Name: "Ada"})
			convey.So(err, convey.ShouldBeNil)
			page, err := c.Events(context.Background(), 0, 10)

			convey.Convey("Then the registration is in the log", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(page.Items, convey.ShouldHaveLength, 1)
				convey.So(page.Items[0].Talent, convey.ShouldEqual, id.String())
				convey.So(page.Next, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given registryctl pointed at a live registry", t, func() {
		srv, stop := startServer(t)
		defer stop()
		talent, _ := cli.NewIdentity()
		client, _ := cli.NewIdentity()

		convey.Convey("When a talent registers and is verified", func() {
			_, err := run(srv.URL, "talent", "register", "--as", talent.String(), "--name", "Ada", "--cert", "CPA", "--birthday", "1990-12-10")
			convey.So(err, convey.ShouldBeNil)
			_, err = run(srv.URL, "talent", "verify", talent.String(), "--as", owner.String())
			convey.So(err, convey.ShouldBeNil)

			out, err := run(srv.URL, "talent", "get", talent.String())

			convey.Convey("Then get prints the verified record", func() {
				convey.So(err, convey.ShouldBeNil)
				var v types.TalentView
				convey.So(json.Unmarshal([]byte(out), &v), convey.ShouldBeNil)
				convey.So(v.IsVerified, convey.ShouldBeTrue)
				convey.So(v.Certifications, convey.ShouldResemble, []string{"CPA"})
			})

			convey.Convey("Then a project can be created and assigned", func() {
				out, err := run(srv.URL, "project", "create", "--as", client.String(),
					"--title", "Audit", "--description", "Books", "--budget", "1000", "--deadline", "48h")
				convey.So(err, convey.ShouldBeNil)
				var p types.ProjectView
				convey.So(json.Unmarshal([]byte(out), &p), convey.ShouldBeNil)
				convey.So(p.ID, convey.ShouldEqual, 1)

				out, err = run(srv.URL, "project", "assign", "1", "--as", client.String(), "--talent", talent.String())
				convey.So(err, convey.ShouldBeNil)
				convey.So(json.Unmarshal([]byte(out), &p), convey.ShouldBeNil)
				convey.So(p.State, convey.ShouldEqual, model.ProjectAssigned)

				out, err = run(srv.URL, "project", "list", "--state", "assigned")
				convey.So(err, convey.ShouldBeNil)
				var page types.Page[types.ProjectView]
				convey.So(json.Unmarshal([]byte(out), &page), convey.ShouldBeNil)
				convey.So(page.Total, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a token is requested", func() {
			out, err := run(srv.URL, "token", "--as", talent.String())

			convey.Convey("Then it verifies for the identity", func() {
				convey.So(err, convey.ShouldBeNil)
				id, err := auth.NewVerifier([]byte(secret)).Verify("Bearer " + string(bytes.TrimSpace([]byte(out))))
				convey.So(err, convey.ShouldBeNil)
				convey.So(id, convey.ShouldEqual, talent)
			})
		})

		convey.Convey("When a mutation has no --as", func() {
			_, err := run(srv.URL, "project", "close", "1")

			convey.Convey("Then the command fails before calling the server", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "--as")
			})
		})

		convey.Convey("When the deadline is malformed", func() {
			_, err := run(srv.URL, "project", "create", "--as", client.String(),
				"--title", "Audit", "--description", "Books", "--budget", "1", "--deadline", "soon")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "--deadline")
			})
		})

		convey.Convey("When the server rejects a command", func() {
			_, err := run(srv.URL, "project", "get", "99")

			convey.Convey("Then the API code is surfaced", func() {
				convey.So(cli.Code(err), convey.ShouldEqual, "project_not_found")
			})
		})
	})
}
