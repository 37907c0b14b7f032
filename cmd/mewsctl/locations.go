package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/app/system/locimport"
	"github.com/mewsorg/mews/internal/app/system/pincodes"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	pincodeSource string
	pincodeOut    string
	pincodeApply  bool
	pincodeDryRun bool

	locationsFile string
)

var fetchPincodesCmd = &cobra.Command{
	Use:   "fetch-pincodes",
	Short: "Download the India Post directory and match pincodes to villages",
	Long: `Downloads the all-India pincode directory, keeps the Telangana rows and
keys them by DISTRICT-MANDAL-VILLAGE. The map is written with --out and,
with --apply, set on every matching village location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		body, err := download(ctx, pincodeSource)
		if err != nil {
			return err
		}
		pins, kept, err := pincodes.Parse(bytes.NewReader(body))
		if err != nil {
			return err
		}
		logger.Info("parsed pincode directory",
			zap.Int("rows", kept),
			zap.Int("villages", len(pins)))

		if pincodeOut != "" {
			if err := writeJSON(pincodeOut, pins); err != nil {
				return err
			}
			logger.Info("wrote pincode map", zap.String("file", pincodeOut))
		}
		if !pincodeApply {
			return nil
		}

		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			res, err := pincodes.Apply(ctx, locationstore.New(db), pins, pincodeDryRun, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "villages %d, matched %d, updated %d, unmatched %d\n",
				res.Villages, res.Matched, res.Updated, len(res.Unmatched))
			if verbose {
				for _, k := range res.Unmatched {
					fmt.Fprintln(out, "  unmatched", k)
				}
			}
			if pincodeDryRun {
				fmt.Fprintln(out, "dry run: nothing written")
			}
			return nil
		})
	},
}

var importLocationsCmd = &cobra.Command{
	Use:   "import-locations",
	Short: "Upsert a state's location tree from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(locationsFile)
		if err != nil {
			return err
		}
		defer f.Close()
		tree, err := locimport.Parse(f)
		if err != nil {
			return err
		}

		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			st, err := locimport.Import(ctx, locationstore.New(db), tree)
			if err != nil {
				return err
			}
			types := make([]string, 0, len(st.Seen))
			for typ := range st.Seen {
				types = append(types, typ)
			}
			sort.Strings(types)
			for _, typ := range types {
				fmt.Fprintf(cmd.OutOrStdout(), "%-13s seen %5d  created %5d\n", strings.ToLower(typ), st.Seen[typ], st.Created[typ])
			}
			return nil
		})
	},
}

var fixAncestorsCmd = &cobra.Command{
	Use:   "fix-location-ancestors",
	Short: "Recompute the ancestor path of every location",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			n, err := locationstore.New(db).RebuildAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt ancestors of %d locations\n", n)
			return nil
		})
	},
}

func init() {
	fetchPincodesCmd.Flags().StringVar(&pincodeSource, "source", pincodes.DefaultSource, "URL of the pincode directory JSON")
	fetchPincodesCmd.Flags().StringVar(&pincodeOut, "out", "", "write the DISTRICT-MANDAL-VILLAGE map to this JSON file")
	fetchPincodesCmd.Flags().BoolVar(&pincodeApply, "apply", false, "set pincodes on matching village locations")
	fetchPincodesCmd.Flags().BoolVar(&pincodeDryRun, "dry-run", false, "with --apply, report without writing")

	importLocationsCmd.Flags().StringVarP(&locationsFile, "file", "f", "", "YAML location tree")
	_ = importLocationsCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(fetchPincodesCmd, importLocationsCmd, fixAncestorsCmd)
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
