package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var migrateDryRun bool

var migrateUploadsCmd = &cobra.Command{
	Use:   "migrate-uploads",
	Short: "Copy local uploads to Cloud Storage and rewrite stored refs",
	Long: `Uploads every file under storage_local_path to storage_gcs_bucket,
skipping objects already present, then rewrites "uploads/..." refs on
members, announcements and carousel images to the object name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			root := cfg.GetString("storage_local_path")
			local, err := filestore.NewLocal(root, "")
			if err != nil {
				return err
			}
			gcs, err := openGCS(ctx)
			if err != nil {
				return err
			}
			defer gcs.Close()

			moved, err := copyTree(ctx, local, gcs)
			if err != nil {
				return err
			}
			rewritten, err := rewriteRefs(ctx, db, moved)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "objects %d, documents rewritten %d\n", len(moved), rewritten)
			if migrateDryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "dry run: nothing written")
			}
			return nil
		})
	},
}

var checkGCSCmd = &cobra.Command{
	Use:   "check-gcs-files",
	Short: "Report member file refs that are missing from the bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			gcs, err := openGCS(ctx)
			if err != nil {
				return err
			}
			defer gcs.Close()

			members, err := memberstore.New(db).Find(ctx, bson.M{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var checked, missing, skipped int
			for i := range members {
				m := &members[i]
				for _, ref := range m.FileRefs() {
					if *ref == "" {
						continue
					}
					if filestore.IsPassthrough(*ref, gcs.BucketName()) {
						skipped++
						continue
					}
					checked++
					ok, err := gcs.Exists(ctx, *ref)
					if err != nil {
						return fmt.Errorf("check %s: %w", *ref, err)
					}
					if !ok {
						missing++
						fmt.Fprintf(out, "missing  %s  %s %s  %s\n", m.MewsID, m.Name, m.Surname, *ref)
					}
				}
			}
			fmt.Fprintf(out, "checked %d, missing %d, not in bucket %d\n", checked, missing, skipped)
			return nil
		})
	},
}

func init() {
	migrateUploadsCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list what would move without writing")
	rootCmd.AddCommand(migrateUploadsCmd, checkGCSCmd)
}

// copyTree uploads every file under local's root and returns a map from
// local ref to object name.
func copyTree(ctx context.Context, local *filestore.Local, gcs *filestore.GCS) (map[string]string, error) {
	moved := map[string]string{}
	err := filepath.WalkDir(local.Root(), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(local.Root(), p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		ref := filestore.LocalPrefix + name
		moved[ref] = name

		exists, err := gcs.Exists(ctx, name)
		if err != nil {
			return fmt.Errorf("check %s: %w", name, err)
		}
		if exists || migrateDryRun {
			logger.Debug("skip upload", zap.String("object", name), zap.Bool("exists", exists))
			return nil
		}

		obj, err := local.Open(ctx, ref)
		if err != nil {
			return err
		}
		defer obj.Body.Close()
		ct := obj.ContentType
		if ct == "" {
			ct = mime.TypeByExtension(path.Ext(name))
		}
		if _, err := gcs.Put(ctx, name, obj.Body, ct); err != nil {
			return err
		}
		logger.Info("uploaded", zap.String("object", name))
		return nil
	})
	return moved, err
}

// rewriteRefs replaces moved local refs on every document that stores one.
func rewriteRefs(ctx context.Context, db *mongo.Database, moved map[string]string) (int, error) {
	swap := func(ref *string) bool {
		key := strings.ReplaceAll(*ref, `\`, "/")
		if name, ok := moved[key]; ok {
			*ref = name
			return true
		}
		return false
	}
	total := 0

	members := memberstore.New(db)
	list, err := members.Find(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	for i := range list {
		m := &list[i]
		changed := false
		for _, ref := range m.FileRefs() {
			changed = swap(ref) || changed
		}
		if !changed {
			continue
		}
		total++
		if migrateDryRun {
			continue
		}
		if _, err := members.Collection().ReplaceOne(ctx, bson.M{"_id": m.ID}, m); err != nil {
			return total, fmt.Errorf("member %s: %w", m.ID.Hex(), err)
		}
	}

	var anns []models.Announcement
	cur, err := db.Collection("announcements").Find(ctx, bson.M{"attachments.0": bson.M{"$exists": true}})
	if err != nil {
		return total, err
	}
	if err := cur.All(ctx, &anns); err != nil {
		return total, err
	}
	for _, a := range anns {
		changed := false
		for i := range a.Attachments {
			changed = swap(&a.Attachments[i]) || changed
		}
		if !changed {
			continue
		}
		total++
		if migrateDryRun {
			continue
		}
		if _, err := db.Collection("announcements").UpdateByID(ctx, a.ID, bson.M{"$set": bson.M{"attachments": a.Attachments}}); err != nil {
			return total, fmt.Errorf("announcement %s: %w", a.ID.Hex(), err)
		}
	}

	var banners []models.CarouselImage
	cur, err = db.Collection("carouselimages").Find(ctx, bson.M{})
	if err != nil {
		return total, err
	}
	if err := cur.All(ctx, &banners); err != nil {
		return total, err
	}
	for _, b := range banners {
		if !swap(&b.ImageURL) {
			continue
		}
		total++
		if migrateDryRun {
			continue
		}
		if _, err := db.Collection("carouselimages").UpdateByID(ctx, b.ID, bson.M{"$set": bson.M{"imageUrl": b.ImageURL}}); err != nil {
			return total, fmt.Errorf("carousel image %s: %w", b.ID.Hex(), err)
		}
	}
	return total, nil
}

func writeJSON(file string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, append(b, '\n'), 0o644)
}
