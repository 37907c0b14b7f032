package main

import (
	"context"
	"fmt"
	"io"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/integrity"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var repair bool

var debugDBCmd = &cobra.Command{
	Use:   "debug-db",
	Short: "Print collection counts and records missing a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			out := cmd.OutOrStdout()
			counts, err := integrity.Counts(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "collections:")
			for _, c := range counts {
				fmt.Fprintf(out, "  %-24s %d\n", c.Name, c.Count)
			}

			refs, err := integrity.MembersWithoutVillage(ctx, memberstore.New(db))
			if err != nil {
				return err
			}
			printRefs(out, "members without a village", refs)

			admins, err := integrity.AdminsWithoutLocation(ctx, userstore.New(db))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "admins without a location: %d\n", len(admins))
			for _, u := range admins {
				fmt.Fprintf(out, "  %s  %-20s %s\n", u.ID.Hex(), u.Username, u.Role)
			}
			return nil
		})
	},
}

var checkIntegrityCmd = &cobra.Command{
	Use:   "check-integrity",
	Short: "Find orphaned dependents and addresses that disagree with the location tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			rep, err := integrity.New(db, repair, logger).Check(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "members checked: %d\n", rep.Members)
			printRefs(out, "orphaned dependents", rep.OrphanedDependents)
			printRefs(out, "unknown villages", rep.UnknownVillages)
			printRefs(out, "address mismatches", rep.AddressMismatches)
			if len(rep.AddressMismatches) > 0 && !repair {
				fmt.Fprintln(out, "rerun with --repair to fix address mismatches")
			}
			return nil
		})
	},
}

func init() {
	checkIntegrityCmd.Flags().BoolVar(&repair, "repair", false, "rewrite mismatched member addresses from the village")
	rootCmd.AddCommand(debugDBCmd, checkIntegrityCmd)
}

func printRefs(w io.Writer, title string, refs []integrity.MemberRef) {
	fmt.Fprintf(w, "%s: %d\n", title, len(refs))
	for _, r := range refs {
		mark := ""
		if r.Repaired {
			mark = " (repaired)"
		}
		fmt.Fprintf(w, "  %s  %-12s %s %s: %s%s\n", r.ID.Hex(), r.MewsID, r.Name, r.Surname, r.Problem, mark)
	}
}
