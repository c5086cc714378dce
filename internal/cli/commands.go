package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/domain/model"
)

// Environment variables read for flag defaults.
const (
	EnvURL    = "TALENTBOARD_URL"
	EnvSecret = "TALENTBOARD_JWT_SECRET"
)

type globals struct {
	url     string
	secret  string
	as      string
	key     string
	timeout time.Duration
}

func (g *globals) client() (*Client, error) {
	if g.secret == "" {
		return nil, fmt.Errorf("--secret or %s is required", EnvSecret)
	}
	return NewClient(g.url, []byte(g.secret), g.timeout), nil
}

// call resolves --as into the acting identity.
func (g *globals) call() (Call, error) {
	id, err := model.ParseIdentity(g.as)
	if err != nil {
		return Call{}, fmt.Errorf("--as: %w", err)
	}
	return Call{As: id, IdempotencyKey: g.key}, nil
}

// NewRootCommand builds the registryctl command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "registryctl",
		Short:         "Command-line client for the talent registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv(EnvURL)
	if defaultURL == "" {
		defaultURL = "http://localhost:9080"
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.url, "url", defaultURL, "base URL of the registry ("+EnvURL+")")
	pf.StringVar(&g.secret, "secret", os.Getenv(EnvSecret), "token signing secret ("+EnvSecret+")")
	pf.StringVar(&g.as, "as", "", "identity to act as")
	pf.StringVar(&g.key, "idempotency-key", "", "idempotency key for mutations")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "HTTP request timeout")

	root.AddCommand(
		newTokenCommand(g),
		newTalentCommand(g),
		newProjectCommand(g),
		newEventsCommand(g),
		newStatsCommand(g),
		newScenarioCommand(g),
	)
	return root
}

func newTokenCommand(g *globals) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for --as",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			call, err := g.call()
			if err != nil {
				return err
			}
			c.ttl = ttl
			tok, err := c.Token(call.As)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func profileFlags(cmd *cobra.Command, p *api.ProfileRequest) {
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "display name")
	f.StringVar(&p.Gender, "gender", "", "gender")
	f.StringVar(&p.Birthday, "birthday", "", "birthday as YYYY-MM-DD")
	f.StringVar(&p.PhysicalAddress, "address", "", "physical address")
	f.StringVar(&p.GovernmentID, "government-id", "", "government id")
	f.StringVar(&p.Career, "career", "", "career summary")
	f.StringSliceVar(&p.Certifications, "cert", nil, "certification (repeatable)")
}

func newTalentCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "talent", Short: "Manage talents"}

	var reg api.ProfileRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Register --as as a talent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.RegisterTalent(cmd.Context(), call, reg))
		},
	}
	profileFlags(register, &reg)

	var upd api.ProfileRequest
	update := &cobra.Command{
		Use:   "update",
		Short: "Replace the profile of --as",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.UpdateTalent(cmd.Context(), call, upd))
		},
	}
	profileFlags(update, &upd)

	verify := &cobra.Command{
		Use:   "verify IDENTITY",
		Short: "Verify a talent; --as must be the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := model.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.VerifyTalent(cmd.Context(), call, target))
		},
	}

	get := &cobra.Command{
		Use:   "get IDENTITY",
		Short: "Show a talent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.Talent(cmd.Context(), id))
		},
	}

	var (
		text, cert    string
		verified      bool
		minRating     uint64
		offset, limit int
	)
	search := &cobra.Command{
		Use:     "list",
		Aliases: []string{"search"},
		Short:   "Search the talent directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			q := url.Values{}
			setIf(q, "q", text)
			setIf(q, "certification", cert)
			if verified {
				q.Set("verified", "true")
			}
			if minRating > 0 {
				q.Set("min_rating", strconv.FormatUint(minRating, 10))
			}
			pageQuery(q, offset, limit)
			return emit(cmd.OutOrStdout())(c.SearchTalents(cmd.Context(), q))
		},
	}
	sf := search.Flags()
	sf.StringVarP(&text, "query", "q", "", "text matched against name, career and certifications")
	sf.StringVar(&cert, "cert", "", "required certification")
	sf.BoolVar(&verified, "verified", false, "only verified talents")
	sf.Uint64Var(&minRating, "min-rating", 0, "minimum rating")
	pageFlags(search, &offset, &limit)

	cmd.AddCommand(register, update, verify, get, search)
	return cmd
}

func newProjectCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	var (
		req      api.CreateProjectRequest
		budget   string
		deadline string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project with --as as client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := model.ParseAmount(budget)
			if err != nil {
				return fmt.Errorf("--budget: %w", err)
			}
			req.Budget = amount
			if req.Deadline, err = parseDeadline(deadline, time.Now()); err != nil {
				return err
			}
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.CreateProject(cmd.Context(), call, req))
		},
	}
	cf := create.Flags()
	cf.StringVar(&req.Title, "title", "", "project title")
	cf.StringVar(&req.Description, "description", "", "project description")
	cf.StringVar(&budget, "budget", "", "budget in wei")
	cf.StringSliceVar(&req.RequiredSkills, "skill", nil, "required skill (repeatable)")
	cf.StringVar(&deadline, "deadline", "168h", "RFC 3339 time or a duration from now")

	var talent string
	assign := &cobra.Command{
		Use:   "assign ID",
		Short: "Assign a verified talent to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			t, err := model.ParseIdentity(talent)
			if err != nil {
				return fmt.Errorf("--talent: %w", err)
			}
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.AssignProject(cmd.Context(), call, id, t))
		},
	}
	assign.Flags().StringVar(&talent, "talent", "", "talent identity")

	closeCmd := &cobra.Command{
		Use:   "close ID",
		Short: "Close an active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			c, call, err := g.mutation()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.CloseProject(cmd.Context(), call, id))
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.Project(cmd.Context(), id))
		},
	}

	var (
		state, client, byTalent string
		offset, limit           int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			q := url.Values{}
			setIf(q, "state", state)
			setIf(q, "client", client)
			setIf(q, "talent", byTalent)
			pageQuery(q, offset, limit)
			return emit(cmd.OutOrStdout())(c.Projects(cmd.Context(), q))
		},
	}
	lf := list.Flags()
	lf.StringVar(&state, "state", "", "open, assigned or closed")
	lf.StringVar(&client, "client", "", "client identity")
	lf.StringVar(&byTalent, "talent", "", "assigned talent identity")
	pageFlags(list, &offset, &limit)

	cmd.AddCommand(create, assign, closeCmd, get, list)
	return cmd
}

func newEventsCommand(g *globals) *cobra.Command {
	var (
		after uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.Events(cmd.Context(), after, limit))
		},
	}
	cmd.Flags().Uint64Var(&after, "after", 0, "return events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	return cmd
}

func newStatsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout())(c.Stats(cmd.Context()))
		},
	}
}

func newScenarioCommand(g *globals) *cobra.Command {
	var cfg ScenarioConfig
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run the project lifecycle scenarios against a live server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			results, err := RunScenarios(cmd.Context(), c, cfg)
			if perr := emit(cmd.OutOrStdout())(results, nil); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&cfg.Talents, "talents", 100, "talents registered concurrently after the lifecycle scenarios")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 8, "concurrent registration workers")
	return cmd
}

func (g *globals) mutation() (*Client, Call, error) {
	c, err := g.client()
	if err != nil {
		return nil, Call{}, err
	}
	call, err := g.call()
	if err != nil {
		return nil, Call{}, err
	}
	return c, call, nil
}

// emit returns a sink that writes v as indented JSON unless err is set.
func emit(w io.Writer) func(v any, err error) error {
	return func(v any, err error) error {
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func pageFlags(cmd *cobra.Command, offset, limit *int) {
	cmd.Flags().IntVar(offset, "offset", 0, "items to skip")
	cmd.Flags().IntVar(limit, "limit", 0, "page size")
}

func pageQuery(q url.Values, offset, limit int) {
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func parseProjectID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("project id %q: %w", s, err)
	}
	return id, nil
}

// parseDeadline accepts an RFC 3339 time or a duration added to now.
func parseDeadline(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--deadline %q: want RFC 3339 time or duration", s)
	}
	return now.Add(d).UTC(), nil
}
