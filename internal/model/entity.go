package model

import "time"

// Entity is a participant in the reputation graph as the reputation API
// understands it.
type Entity struct {
	Name  string     `json:"name"`
	IDs   EntityIDs  `json:"ids"`
	Image string     `json:"image,omitempty"`
	Type  EntityType `json:"type"`
}

type EntityIDs struct {
	UUID string `json:"uuid"`
}

// EntityRecord is the local registration cache row for a handle. Presence of
// a row means the entity is already registered remotely; UUID may be an
// externally supplied override (e.g. a wallet address) instead of the
// deterministic handle hash.
type EntityRecord struct {
	Handle       string    `db:"handle" json:"handle"`
	UUID         string    `db:"uuid" json:"uuid"`
	Image        string    `db:"image" json:"image,omitempty"`
	Type         string    `db:"type" json:"type"`
	RegisteredAt time.Time `db:"registered_at" json:"registeredAt"`
}

type UpsertEntityParams struct {
	Handle string
	UUID   string
	Image  string
	Type   string
}
