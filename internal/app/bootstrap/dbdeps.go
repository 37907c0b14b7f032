// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the backends shared by every hook after ConnectDB.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Files is the upload store: local disk or a GCS bucket.
	Files filestore.Store
	// GCS is set when Files is bucket-backed, so Shutdown can close it.
	GCS *filestore.GCS
	// Bucket names the GCS bucket ("" for local storage). Signing and the
	// image proxy only touch URLs in this bucket.
	Bucket string

	// bg is shared by value copies of DBDeps so Startup can hand the
	// running workers to Shutdown.
	bg *background
}

type background struct {
	runner *workers.Runner
}
