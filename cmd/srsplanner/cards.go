package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"srs-planner/internal/repository"
	"srs-planner/internal/service"
	"srs-planner/internal/srs"
)

const timeLayout = "2006-01-02 15:04"

func newAddCommand() *cobra.Command {
	var owner, deck string

	command := &cobra.Command{
		Use:   "add <front> <back>",
		Short: "Create a flashcard that is due immediately",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			card, err := a.cards.CreateCard(cmd.Context(), owner, service.CardInput{Front: args[0], Back: args[1], Deck: deck}, time.Now())
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "created %s\n", card.ID)
			return nil
		},
	}

	command.Flags().StringVar(&owner, "owner", "", "owner id")
	command.Flags().StringVar(&deck, "deck", "", "deck name")
	_ = command.MarkFlagRequired("owner")
	return command
}

func newDueCommand() *cobra.Command {
	var owner, deck, tz string
	var limit int

	command := &cobra.Command{
		Use:   "due",
		Short: "List the cards that are due now",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := service.LoadTimezone(tz)
			if err != nil {
				return err
			}
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			filter, err := a.deckSvc.Filter(cmd.Context(), owner, deck)
			if err != nil {
				return deckError(deck, err)
			}
			filter.WithDetails = true
			res, err := a.queries.Due(cmd.Context(), owner, limit, filter)
			if err != nil {
				return err
			}
			printDue(cmd.OutOrStdout(), res, loc)
			return nil
		},
	}

	command.Flags().StringVar(&owner, "owner", "", "owner id")
	command.Flags().StringVar(&deck, "deck", "", "only cards of this deck")
	command.Flags().StringVar(&tz, "tz", "", "IANA time zone for printed dates (defaults to UTC)")
	command.Flags().IntVar(&limit, "limit", 0, "maximum number of cards (defaults to review.due_limit)")
	_ = command.MarkFlagRequired("owner")
	return command
}

func newTimelineCommand() *cobra.Command {
	var owner, deck string

	command := &cobra.Command{
		Use:   "timeline",
		Short: "Show how many cards fall into each review horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			filter, err := a.deckSvc.Filter(cmd.Context(), owner, deck)
			if err != nil {
				return deckError(deck, err)
			}
			res, err := a.queries.Timeline(cmd.Context(), owner, filter)
			if err != nil {
				return err
			}
			printTimeline(cmd.OutOrStdout(), res)
			return nil
		},
	}

	command.Flags().StringVar(&owner, "owner", "", "owner id")
	command.Flags().StringVar(&deck, "deck", "", "only cards of this deck")
	_ = command.MarkFlagRequired("owner")
	return command
}

func newReviewCommand() *cobra.Command {
	var owner string

	command := &cobra.Command{
		Use:   "review <item-id> <good|hard|forgot>",
		Short: "Record a review outcome for a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := srs.ParseOutcome(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reviews.OnReview(cmd.Context(), args[0], owner, outcome, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "step %d, next review in %s at %s\n",
				res.State.Step, res.IntervalDisplay, res.State.DueAt.UTC().Format(timeLayout))
			return nil
		},
	}

	command.Flags().StringVar(&owner, "owner", "", "owner id")
	_ = command.MarkFlagRequired("owner")
	return command
}

func deckError(deck string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("deck %q not found", deck)
	}
	return err
}

func printDue(w io.Writer, res service.DueResult, loc *time.Location) {
	if res.TotalDue == 0 {
		color.New(color.FgGreen).Fprintln(w, "Nothing is due.")
		return
	}
	color.New(color.Bold).Fprintf(w, "%d due\n", res.TotalDue)
	for _, item := range res.Items {
		front := ""
		if item.Details != nil {
			front = item.Details.Front
		}
		fmt.Fprintf(w, "%s  %s  step %d  %s\n", item.ItemID, item.State.DueAt.In(loc).Format(timeLayout), item.State.Step, front)
	}
	if hidden := res.TotalDue - len(res.Items); hidden > 0 {
		color.New(color.FgHiBlack).Fprintf(w, "... and %d more\n", hidden)
	}
}

func printTimeline(w io.Writer, res service.TimelineResult) {
	if len(res.Periods) == 0 {
		fmt.Fprintln(w, "No cards yet.")
		return
	}
	color.New(color.Bold).Fprintf(w, "due %d, upcoming %d\n", res.TotalDue, res.TotalUpcoming)
	for _, p := range res.Periods {
		c := color.New(color.FgCyan)
		if p.Period == service.DueBucketLabel {
			c = color.New(color.FgYellow)
		}
		c.Fprintf(w, "  %-10s", p.Period)
		fmt.Fprintf(w, " %d\n", p.Count)
	}
}
