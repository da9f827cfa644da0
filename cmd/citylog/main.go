// Command citylog is a terminal front end for the visited-cities session.
//
//	citylog [-base-url URL] list
//	citylog countries
//	citylog show <id>
//	citylog add -name Lisbon -country Portugal -code PT -lat 38.7 -lng -9.1 [-date RFC3339] [-notes text]
//	citylog delete <id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/FACorreiaa/loci-cities/internal/domain/city"
	"github.com/FACorreiaa/loci-cities/internal/types"
	"github.com/FACorreiaa/loci-cities/pkg/config"
	"github.com/FACorreiaa/loci-cities/pkg/logger"
)

var errUsage = errors.New("usage: citylog [-base-url URL] <list|countries|show|add|delete> [args]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "citylog:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(ctx, cfg, log, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "citylog:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("citylog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("base-url", cfg.Client.BaseURL, "city store base URL")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	repo, err := city.NewHTTPRepository(*baseURL, log,
		city.WithTimeout(cfg.Client.Timeout),
		city.WithRateLimit(cfg.Client.RequestsPerSecond, 1),
	)
	if err != nil {
		return err
	}
	session := city.NewSession(repo, log)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Close()

	select {
	case <-session.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		return listCities(session.Snapshot(), out)
	case "countries":
		return listCountries(session.Snapshot(), out)
	case "show":
		return showCity(ctx, session, rest, out)
	case "add":
		return addCity(ctx, session, rest, out)
	case "delete":
		return deleteCity(ctx, session, rest, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func viewError(v city.View) error {
	if v.Error != "" {
		return errors.New(v.Error)
	}
	return nil
}

func listCities(v city.View, out io.Writer) error {
	if err := viewError(v); err != nil {
		return err
	}
	if len(v.Cities) == 0 {
		fmt.Fprintln(out, "Add your first city by clicking on a city on the map")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCITY\tCOUNTRY\tVISITED")
	for _, c := range v.Cities {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", c.ID, c.Emoji, c.CityName, c.Country, formatDate(c))
	}
	return tw.Flush()
}

func listCountries(v city.View, out io.Writer) error {
	if err := viewError(v); err != nil {
		return err
	}
	if len(v.Countries) == 0 {
		fmt.Fprintln(out, "Add your first city by clicking on a city on the map")
		return nil
	}
	for _, c := range v.Countries {
		fmt.Fprintf(out, "%s %s\n", c.Emoji, c.Country)
	}
	return nil
}

func showCity(ctx context.Context, s *city.Session, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <id>", errUsage)
	}
	if err := s.LoadOne(ctx, types.CityID(args[0])); err != nil {
		return err
	}
	v := s.Snapshot()
	if err := viewError(v); err != nil {
		return err
	}
	if v.CurrentCity == nil {
		return ctx.Err()
	}
	c := v.CurrentCity
	fmt.Fprintf(out, "%s %s (%s)\n", c.Emoji, c.CityName, c.Country)
	fmt.Fprintf(out, "You went to %s on %s\n", c.CityName, formatDate(*c))
	fmt.Fprintf(out, "Position: %.4f, %.4f\n", c.Position.Lat, c.Position.Lng)
	if c.Notes != "" {
		fmt.Fprintf(out, "Your notes: %s\n", c.Notes)
	}
	return nil
}

func addCity(ctx context.Context, s *city.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "city name")
	country := fs.String("country", "", "country name")
	code := fs.String("code", "", "ISO country code, used to derive the flag")
	emoji := fs.String("emoji", "", "country flag emoji, overrides -code")
	date := fs.String("date", "", "visit date (RFC 3339, defaults to now)")
	notes := fs.String("notes", "", "notes about the trip")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *date == "" {
		*date = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if *emoji == "" && *code != "" {
		glyph, err := types.FlagEmoji(*code)
		if err != nil {
			return err
		}
		*emoji = glyph
	}

	payload := types.NewCity{
		CityName: *name,
		Country:  *country,
		Emoji:    *emoji,
		Date:     *date,
		Notes:    *notes,
		Position: types.Position{Lat: *lat, Lng: *lng},
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	created, err := s.Create(ctx, payload)
	if err != nil {
		return err
	}
	if created == nil {
		if err := viewError(s.Snapshot()); err != nil {
			return err
		}
		return ctx.Err()
	}
	fmt.Fprintf(out, "Added %s %s (%s)\n", created.Emoji, created.CityName, created.ID)
	return nil
}

func deleteCity(ctx context.Context, s *city.Session, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <id>", errUsage)
	}
	id := types.CityID(args[0])
	if err := s.Delete(ctx, id); err != nil {
		return err
	}
	v := s.Snapshot()
	if err := viewError(v); err != nil {
		return err
	}
	for _, c := range v.Cities {
		if c.ID == id {
			return ctx.Err()
		}
	}
	fmt.Fprintf(out, "Deleted %s\n", id)
	return nil
}

func formatDate(c types.City) string {
	t, err := c.Visited()
	if err != nil {
		return c.Date
	}
	return t.Format("January 2, 2006")
}
