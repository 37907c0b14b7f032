// internal/domain/models/idcounter.go
package models

// IDCounter holds the running sequence for one "SS-DD-YYYY" member id block.
type IDCounter struct {
	Key string `bson:"key"`
	Seq int64  `bson:"seq"`
}
