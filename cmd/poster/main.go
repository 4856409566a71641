package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"movieposter/internal/apiclient"
	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/lifecycle"
	"movieposter/internal/poster"
	"movieposter/internal/session"
	"movieposter/internal/storage"
)

const listPreview = 30

type app struct {
	api     *apiclient.Client
	session *session.Session
	poller  *lifecycle.Poller
	store   *storage.FileStore
	out     io.Writer
	logger  infra.Logger
}

func main() {
	var (
		apiFlag      string
		outFlag      string
		styleFlag    string
		intervalFlag time.Duration
		timeoutFlag  time.Duration
		verboseFlag  bool
	)
	flag.StringVar(&apiFlag, "api", envOr("POSTER_API_URL", "http://localhost:8080"), "base URL of the poster service")
	flag.StringVar(&outFlag, "out", envOr("POSTER_OUTPUT_DIR", "./posters"), "directory generated posters are saved to")
	flag.StringVar(&styleFlag, "style", "Cinematic", "initial poster style")
	flag.DurationVar(&intervalFlag, "interval", lifecycle.DefaultInterval, "delay between status checks")
	flag.DurationVar(&timeoutFlag, "timeout", lifecycle.DefaultMaxDuration, "give up on a poster after this long")
	flag.BoolVar(&verboseFlag, "v", false, "log requests and lifecycle transitions to stderr")
	flag.Parse()

	level := zerolog.WarnLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	store, err := storage.NewFileStore(outFlag)
	if err != nil {
		exitWithError(err)
	}

	a := &app{
		api:     apiclient.New(apiclient.Options{BaseURL: apiFlag}),
		session: session.New(),
		poller: lifecycle.NewPoller(nil, infra.PollConfig{
			Interval:    intervalFlag,
			MaxAttempts: lifecycle.DefaultMaxAttempts,
			Timeout:     timeoutFlag,
		}, &logger),
		store:  store,
		out:    os.Stdout,
		logger: logger,
	}
	a.poller.Fetcher = a.api
	a.session.SetStyle(poster.ParseStyle(styleFlag))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintln(a.out, "Movie poster generator. Type an actor name to begin, or 'help'.")
	for {
		input, err := line.Prompt(a.promptLabel())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			exitWithError(err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		cmd, err := parseCommand(input)
		if err != nil {
			fmt.Fprintln(a.out, err)
			continue
		}
		if cmd.kind == cmdQuit {
			return
		}
		a.dispatch(cmd)
	}
}

func (a *app) promptLabel() string {
	actor := a.session.Actor()
	if actor == nil {
		return "poster> "
	}
	return fmt.Sprintf("poster [%s %d/%d]> ", actor.Name, len(a.session.Selected()), domain.MaxSelectedMovies)
}

func (a *app) dispatch(cmd command) {
	switch cmd.kind {
	case cmdSearch:
		a.search(cmd.arg)
	case cmdList:
		a.list(cmd.arg == "all")
	case cmdPick:
		a.pick(cmd.nums)
	case cmdStyle:
		a.style(cmd.arg)
	case cmdPrompt:
		prompt, err := a.session.Prompt()
		if err != nil {
			a.fail(err)
			return
		}
		fmt.Fprintln(a.out, prompt)
	case cmdGenerate:
		a.generate()
	case cmdHelp:
		fmt.Fprintln(a.out, helpText)
	}
}

func (a *app) search(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	actor, err := a.api.SearchActor(ctx, query)
	if err != nil {
		a.fail(err)
		return
	}
	a.session.SetActor(actor)
	fmt.Fprintf(a.out, "%s (%s)\n", actor.Name, actor.KnownForDepartment)
	if portrait := actor.PortraitURL(); portrait != "" {
		fmt.Fprintf(a.out, "Portrait: %s\n", portrait)
	}
	a.list(false)
}

func (a *app) list(all bool) {
	actor := a.session.Actor()
	if actor == nil {
		fmt.Fprintln(a.out, "Search for an actor first.")
		return
	}
	if len(actor.Movies) == 0 {
		fmt.Fprintln(a.out, "No movie credits found.")
		return
	}
	shown := actor.Movies
	if !all && len(shown) > listPreview {
		shown = shown[:listPreview]
	}
	for i, m := range shown {
		mark := " "
		if a.session.IsSelected(m.ID) {
			mark = "*"
		}
		year := m.Year()
		if year == "" {
			year = "----"
		}
		fmt.Fprintf(a.out, "%s %3d. %s  %s\n", mark, i+1, year, m.Title)
	}
	if len(shown) < len(actor.Movies) {
		fmt.Fprintf(a.out, "... %d more, use 'list all'\n", len(actor.Movies)-len(shown))
	}
}

func (a *app) pick(nums []int) {
	actor := a.session.Actor()
	if actor == nil {
		fmt.Fprintln(a.out, "Search for an actor first.")
		return
	}
	for _, n := range nums {
		if n > len(actor.Movies) {
			fmt.Fprintf(a.out, "No movie number %d.\n", n)
			continue
		}
		movie := actor.Movies[n-1]
		selected, err := a.session.Toggle(movie.ID)
		if err != nil {
			a.fail(err)
			continue
		}
		verb := "Removed"
		if selected {
			verb = "Added"
		}
		fmt.Fprintf(a.out, "%s %s\n", verb, movie.Title)
	}
}

func (a *app) style(name string) {
	if name == "" {
		current := a.session.Style()
		for _, s := range poster.Styles {
			mark := " "
			if s == current {
				mark = "*"
			}
			fmt.Fprintf(a.out, "%s %s\n", mark, s)
		}
		return
	}
	style := poster.ParseStyle(name)
	a.session.SetStyle(style)
	fmt.Fprintf(a.out, "Style: %s\n", style)
}

// generate submits the selection and polls until the poster settles. Ctrl-C
// abandons the job and returns to the prompt.
func (a *app) generate() {
	actor, style, err := a.session.Submission()
	if err != nil {
		a.fail(err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prediction, err := a.api.CreatePrediction(ctx, actor, style)
	if err != nil {
		a.generationFailed(err)
		return
	}
	token := a.session.Begin(*prediction)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	apply := a.session.Observer(token)
	job := a.poller.Run(ctx, token, *prediction, func(j lifecycle.Job) {
		apply(j)
		bar.Describe(string(j.Prediction.Status))
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	switch job.State {
	case lifecycle.StateSucceeded:
		a.save(ctx, actor.Name, job.Prediction)
	case lifecycle.StateAbandoned:
		a.session.Cancel()
		a.generationFailed(context.Canceled)
	case lifecycle.StateFailed:
		detail := job.Prediction.Detail
		if detail == "" {
			detail = "Prediction " + string(job.Prediction.Status) + "."
		}
		fmt.Fprintln(a.out, "Generation failed:", detail)
	default:
		a.fail(job.Err)
	}
}

func (a *app) save(ctx context.Context, actorName string, p domain.Prediction) {
	imageURL := p.PosterURL()
	if imageURL == "" {
		fmt.Fprintln(a.out, "The prediction finished without an image.")
		return
	}
	fmt.Fprintln(a.out, "Poster:", imageURL)

	data, err := a.api.Download(ctx, imageURL)
	if err != nil {
		a.generationFailed(err)
		return
	}
	path, err := a.store.SavePoster(ctx, actorName, p.ID, data)
	if err != nil {
		a.fail(err)
		return
	}
	fmt.Fprintln(a.out, "Saved to", path)
}

// generationFailed reports err from the generate flow. Ctrl-C surfaces as a
// canceled context and is reported as a cancellation.
func (a *app) generationFailed(err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.out, "Generation cancelled.")
		return
	}
	a.fail(err)
}

func (a *app) fail(err error) {
	if err == nil {
		return
	}
	a.logger.Debug().Err(err).Msg("poster: command failed")
	fmt.Fprintln(a.out, domain.Detail(err))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
