package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/pipeline"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		year     int
		kindFlag string
		tmdbID   string
		maxCount int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Look up poster candidates for one title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}

			session := newSession(cfg)
			defer session.Teardown()
			if err := session.Ensure(cmd.Context()); err != nil {
				return err
			}

			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			p := pipeline.New(pipeline.Deps{
				Session:      session,
				Resolver:     resolver,
				Posters:      newPosterSite(cfg, nil),
				ReadyTimeout: cfg.Browser.ReadyTimeout.Duration,
				MaxPerItem:   cfg.Posters.MaxPerItem,
			})

			res, err := p.FindPosters(cmd.Context(), pipeline.Request{
				Title:      strings.Join(args, " "),
				Year:       year,
				Kind:       kind,
				ExternalID: tmdbID,
				Max:        maxCount,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(out, "Query: %s (%s)\n", res.Query, res.Resolution)
			if len(res.Posters) == 0 {
				fmt.Fprintln(out, "No posters found.")
				return nil
			}
			fmt.Fprintln(out, renderPosters(res.Posters))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year of the local title")
	cmd.Flags().StringVar(&kindFlag, "type", "", "Media type: movie or series")
	cmd.Flags().StringVar(&tmdbID, "tmdb", "", "TMDB id used to canonicalise the title")
	cmd.Flags().IntVar(&maxCount, "max", 0, "Maximum number of candidates (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func parseKind(s string) (models.MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "movie", "movies":
		return models.KindMovie, nil
	case "series", "show", "tv":
		return models.KindSeries, nil
	default:
		return "", fmt.Errorf("unknown type %q: use movie or series", s)
	}
}

func renderPosters(posters []models.PosterCandidate) string {
	rows := make([][]string, 0, len(posters))
	for _, p := range posters {
		rows = append(rows, []string{strconv.Itoa(p.ID), p.URL})
	}
	return renderTable([]string{"#", "URL"}, rows, []columnAlignment{alignRight, alignLeft})
}
